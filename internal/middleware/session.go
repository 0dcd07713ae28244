package middleware

import (
	"context"
	"net/http"

	"github.com/crotonn/writers-backend/internal/authz"
	"github.com/crotonn/writers-backend/internal/identity"
	"github.com/crotonn/writers-backend/internal/model"
)

const (
	// accessTokenCookie はアクセストークンを保持するHTTP Only Cookieの名前。
	accessTokenCookie = "access_token"
	// refreshTokenCookie はリフレッシュトークンを保持するHTTP Only Cookieの名前。
	refreshTokenCookie = "refresh_token"
)

// SessionResolver はセッション解決に必要なインターフェース。
// identity.Serviceの部分集合として定義する。
type SessionResolver interface {
	Resolve(ctx context.Context, creds identity.Credentials) (*model.Session, *identity.Credentials)
	ResolveRole(ctx context.Context, ident *model.Identity) (model.Role, bool)
}

// SessionCookieConfig はセッションCookieの属性設定。
type SessionCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewSessionContextMiddleware はCookieの資格情報からセッションとロールを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 解決はリクエストごとに1回だけ行われ、下流（ガード、ハンドラー）は
// コンテキストの値を参照する。
// リフレッシュでトークンがローテーションされた場合は新しいCookieを書き戻す。
// 未認証リクエストもブロックせずに通す。アクセス制御はガードとRequireRoleが行う。
func NewSessionContextMiddleware(resolver SessionResolver, config SessionCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := readCredentials(r)

			sess, rotated := resolver.Resolve(r.Context(), creds)
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			if rotated != nil {
				WriteSessionCookies(w, *rotated, config)
			}

			role, _ := resolver.ResolveRole(r.Context(), sess.Identity)
			ctx := ContextWithSession(r.Context(), sess, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole は指定ロールの権限を要求するミドルウェアを返す。
// 未認証には401、ロール不足には403を返す。adminは常に許可される。
// セッションコンテキストミドルウェアの後に配置すること。
func RequireRole(required model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				WriteUnauthorized(w)
				return
			}
			if !authz.IsAuthorized(role, required) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// readCredentials はリクエストCookieから資格情報ペアを読み取る。
func readCredentials(r *http.Request) identity.Credentials {
	var creds identity.Credentials
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		creds.AccessToken = c.Value
	}
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		creds.RefreshToken = c.Value
	}
	return creds
}

// WriteSessionCookies は資格情報ペアをHTTP Only Cookieとして書き込む。
func WriteSessionCookies(w http.ResponseWriter, creds identity.Credentials, config SessionCookieConfig) {
	setTokenCookie(w, accessTokenCookie, creds.AccessToken, config.MaxAge, config)
	setTokenCookie(w, refreshTokenCookie, creds.RefreshToken, config.MaxAge, config)
}

// ClearSessionCookies は資格情報Cookieを削除する。
func ClearSessionCookies(w http.ResponseWriter, config SessionCookieConfig) {
	setTokenCookie(w, accessTokenCookie, "", -1, config)
	setTokenCookie(w, refreshTokenCookie, "", -1, config)
}

func setTokenCookie(w http.ResponseWriter, name, value string, maxAge int, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
