package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crotonn/writers-backend/internal/metrics"
	"github.com/crotonn/writers-backend/internal/middleware"
	"github.com/crotonn/writers-backend/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CookieConfig      middleware.SessionCookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス
	GuardMetrics  middleware.GuardMetrics
	StatusMetrics middleware.HTTPStatusMetrics
	SignUpMetrics SignUpMetrics
	Gatherer      prometheus.Gatherer

	// サービス
	AuthService  AuthServiceInterface
	OrderService OrderServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → StatusMetrics → Logging → CORS → SessionContext → Guard
//
// セッション解決はSessionContextで1回だけ行い、
// ページ遷移のアクセス制御はGuard、APIのアクセス制御はRequireRoleが担う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusMetrics))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionContextMiddleware(deps.SessionResolver, deps.CookieConfig))
	r.Use(middleware.NewGuardMiddleware(deps.GuardMetrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.SignUpMetrics, AuthHandlerConfig{
		Cookies: deps.CookieConfig,
	})
	orderHandler := NewOrderHandler(deps.OrderService)

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.CookieConfig.Secure,
		CookieDomain: deps.CookieConfig.Domain,
	}

	// --- 運用エンドポイント ---

	r.Get("/health", healthHandler)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート ---
	// サインイン・サインアップはIP単位のレート制限をかける

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.SignUp)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.SignIn)
		r.Post("/logout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
	})

	// OAuthコールバック（ガード対象外の交換エンドポイント）
	r.Get("/api/auth/callback", authHandler.Callback)

	// ダッシュボード（ガード通過後に到達する画面シェル）
	r.Get("/dashboard", dashboardHandler)
	r.Get("/dashboard/*", dashboardHandler)

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf", middleware.NewCSRFTokenHandler(csrfConfig))

	// --- 認証必須のAPIルート ---
	// ミドルウェアスタック: RateLimit(General) → CSRF

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		r.Get("/quote", orderHandler.Quote)

		// 注文作成は発注者（client。adminはスーパーロール）のみ
		r.With(middleware.RequireRole(model.RoleClient)).Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", orderHandler.GetOrder)
			r.Get("/messages", orderHandler.ListMessages)
			r.Post("/messages", orderHandler.PostMessage)
		})
	})

	return r
}

// healthHandler はヘルスチェックに200を返す。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// dashboardHandler はガードを通過したダッシュボード要求に画面シェル情報を返す。
// 実際の画面はフロントエンドが描画する。
func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	role, _ := middleware.RoleFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"role": string(role),
		"path": r.URL.Path,
	})
}
