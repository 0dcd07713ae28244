// Package authz はリクエスト時の認可ポリシーを純関数として提供する。
// セッション解決の結果（未認証か、どのロールか）とリクエストパスから、
// 許可・ログインへのリダイレクト・ロールホームへのリダイレクトを決定する。
package authz

import (
	"net/url"
	"path"
	"strings"

	"github.com/crotonn/writers-backend/internal/model"
)

// LoginPath はログインページのパス。未認証リダイレクトの宛先。
const LoginPath = "/auth/login"

// RedirectedFromParam はログインリダイレクト時に元のパスを運ぶクエリパラメータ名。
const RedirectedFromParam = "redirectedFrom"

// PathClass はリクエストパスの分類。
type PathClass int

const (
	// ClassExempt はガードの対象外（静的アセット、コールバック、API、運用エンドポイント）。
	ClassExempt PathClass = iota
	// ClassPublic は誰でも閲覧できるマーケティングページ。
	ClassPublic
	// ClassAuth はログイン・サインアップページ。
	ClassAuth
	// ClassProtected は認証必須のダッシュボード名前空間。
	ClassProtected
)

// roleHomes はロールからダッシュボードホームへの唯一の対応表。
// ここ以外でこの対応を定義してはならない。
var roleHomes = map[model.Role]string{
	model.RoleAdmin:  "/dashboard/admin",
	model.RoleWriter: "/dashboard/writer",
	model.RoleClient: "/dashboard/client",
}

// RoleHome はロールに対応するダッシュボードホームのパスを返す。
// 未知・未設定のロールはclientのホームにフォールバックする。
func RoleHome(role model.Role) string {
	if home, ok := roleHomes[role]; ok {
		return home
	}
	return roleHomes[model.RoleClient]
}

// ClassifyPath はリクエストパスをガード上の分類に割り当てる。
func ClassifyPath(p string) PathClass {
	switch {
	case strings.HasPrefix(p, "/api/"),
		p == "/health",
		p == "/metrics":
		return ClassExempt
	case p == "/auth/logout" || p == "/auth/me":
		// セッション操作エンドポイント。認証済みでもリダイレクトしない
		return ClassExempt
	case path.Ext(p) != "":
		// 拡張子付きパスは静的アセットとして素通しする
		return ClassExempt
	case p == "/auth" || strings.HasPrefix(p, "/auth/"):
		return ClassAuth
	case p == "/dashboard" || strings.HasPrefix(p, "/dashboard/"):
		return ClassProtected
	default:
		return ClassPublic
	}
}

// State はリクエスト時点の認証状態。ANONYMOUSまたはAUTHENTICATED(role)。
type State struct {
	Authenticated bool
	Role          model.Role
}

// Anonymous は未認証状態を返す。
func Anonymous() State {
	return State{}
}

// Authenticated は指定ロールの認証済み状態を返す。
func Authenticated(role model.Role) State {
	return State{Authenticated: true, Role: role}
}

// Decision はガードの判定結果。
// Allowがfalseの場合、RedirectToにリダイレクト先の完全なパスが入る。
type Decision struct {
	Allow      bool
	RedirectTo string
}

// allow は許可の判定結果を返す。
func allow() Decision {
	return Decision{Allow: true}
}

// redirect は指定先へのリダイレクト判定を返す。
func redirect(to string) Decision {
	return Decision{RedirectTo: to}
}

// Decide は認証状態とリクエストパスからガードの判定を行う。
// 判定はリクエストごとに毎回評価され、状態を持たない。
//
//	ANONYMOUS      × public/auth     → allow
//	ANONYMOUS      × protected       → redirect login（元パスをredirectedFromに保持）
//	AUTHENTICATED  × auth            → redirect 自ロールのホーム
//	AUTHENTICATED  × 自ロール名前空間 → allow
//	AUTHENTICATED  × 他ロール名前空間 → redirect 自ロールのホーム
func Decide(state State, requestPath string) Decision {
	switch ClassifyPath(requestPath) {
	case ClassExempt, ClassPublic:
		return allow()

	case ClassAuth:
		if !state.Authenticated {
			return allow()
		}
		return redirect(RoleHome(state.Role))

	case ClassProtected:
		if !state.Authenticated {
			return redirect(loginRedirect(requestPath))
		}
		if namespaceMatches(state.Role, requestPath) {
			return allow()
		}
		// 他ロールの名前空間へは、要求された側ではなく常に自ロールのホームへ返す
		return redirect(RoleHome(state.Role))
	}

	return allow()
}

// IsAuthorized は現在のロールが要求ロールの操作を実行できるかを返す。
// adminは常に許可されるスーパーロール。未認証（空ロール）は常に拒否。
// 副作用を持たず、並行呼び出しに安全。
func IsAuthorized(current, required model.Role) bool {
	if current == "" {
		return false
	}
	if current == model.RoleAdmin {
		return true
	}
	return current == required
}

// loginRedirect は元のパスを保持したログインページへのリダイレクト先を組み立てる。
func loginRedirect(from string) string {
	q := url.Values{RedirectedFromParam: {from}}
	return LoginPath + "?" + q.Encode()
}

// namespaceMatches はパスがロール自身のダッシュボード名前空間に属するかを返す。
// "/dashboard" 単体はどの名前空間にも属さない（ロールホームへ誘導する）。
func namespaceMatches(role model.Role, p string) bool {
	home := RoleHome(role)
	return p == home || strings.HasPrefix(p, home+"/")
}
