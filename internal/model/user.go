// Package model はドメインモデルを定義する。
package model

import "time"

// Role は利用者の役割を表す閉じた列挙。
// ダッシュボードのどの名前空間にアクセスできるかを決定する。
type Role string

const (
	// RoleAdmin は全名前空間にアクセスできる管理者。
	RoleAdmin Role = "admin"
	// RoleWriter は受注者（ライター）。
	RoleWriter Role = "writer"
	// RoleClient は発注者。新規ユーザーのデフォルト。
	RoleClient Role = "client"
)

// ParseRole は文字列をRoleに変換する。
// 未知の値や空文字列はRoleClientとして扱う。
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleWriter, RoleClient:
		return Role(s)
	default:
		return RoleClient
	}
}

// Valid はRoleが閉じた列挙のいずれかであるかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWriter, RoleClient:
		return true
	}
	return false
}

// Identity は外部IdPが保持する認証済みユーザー情報を表す。
// IdPが所有するレコードであり、アプリケーション側では変更しない。
type Identity struct {
	ID       string
	Email    string
	FullName string
	// Metadata はサインアップ時に付与された任意のメタデータ。
	// roleのヒントを含む場合がある。
	Metadata map[string]string
}

// Profile はIdentityに対応するアプリケーション側のミラー行を表す。
// 初回サインアップまたは初回ログイン後のコールバックで1度だけ作成される。
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
}

// Session はIdentityに紐づく時限付きクレデンシャルを表す。
// トークンの実体はIdPが所有し、アプリケーションはリクエスト単位の
// 短命な参照のみを保持する。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     *Identity
}

// UserID はセッションに紐づくIdentityのIDを返す。
// Identityが未解決の場合は空文字列を返す。
func (s *Session) UserID() string {
	if s == nil || s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}
