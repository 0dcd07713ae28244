package middleware

import (
	"net/http"

	"github.com/crotonn/writers-backend/internal/authz"
)

// GuardMetrics はガード判定の結果を記録するインターフェース。
type GuardMetrics interface {
	RecordGuardDecision(outcome string)
}

// ガード判定結果のラベル値。
const (
	GuardOutcomeAllow         = "allow"
	GuardOutcomeLoginRedirect = "login_redirect"
	GuardOutcomeRoleRedirect  = "role_redirect"
)

// NewGuardMiddleware はページ遷移のルートガードを返す。
// コンテキストの認証状態とリクエストパスからauthz.Decideで判定し、
// 許可なら下流へ、そうでなければリダイレクトを返す。
// セッションコンテキストミドルウェアの後に配置すること。
// metricsはnilを許容する。
func NewGuardMiddleware(metrics GuardMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := authz.Anonymous()
			if role, ok := RoleFromContext(r.Context()); ok {
				state = authz.Authenticated(role)
			}

			decision := authz.Decide(state, r.URL.Path)
			if decision.Allow {
				recordGuard(metrics, GuardOutcomeAllow)
				next.ServeHTTP(w, r)
				return
			}

			if state.Authenticated {
				recordGuard(metrics, GuardOutcomeRoleRedirect)
			} else {
				recordGuard(metrics, GuardOutcomeLoginRedirect)
			}
			http.Redirect(w, r, decision.RedirectTo, http.StatusTemporaryRedirect)
		})
	}
}

func recordGuard(metrics GuardMetrics, outcome string) {
	if metrics != nil {
		metrics.RecordGuardDecision(outcome)
	}
}
