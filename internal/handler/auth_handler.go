// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crotonn/writers-backend/internal/authz"
	"github.com/crotonn/writers-backend/internal/identity"
	"github.com/crotonn/writers-backend/internal/middleware"
	"github.com/crotonn/writers-backend/internal/model"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password, fullName string) (*model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	ResolveRole(ctx context.Context, ident *model.Identity) (model.Role, bool)
}

// SignUpMetrics はアカウント作成数を記録するインターフェース。
type SignUpMetrics interface {
	RecordSignUp()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookies middleware.SessionCookieConfig
}

// AuthHandler は認証関連のHTTPハンドラー。
// 認証自体は外部IdPに委譲し、ここでは入力検証とCookieの発行・破棄を行う。
type AuthHandler struct {
	service AuthServiceInterface
	metrics SignUpMetrics
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilを許容する。
func NewAuthHandler(service AuthServiceInterface, metrics SignUpMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// signUpRequest はサインアップのリクエストボディ。
type signUpRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// signInRequest はサインインのリクエストボディ。
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse は認証エンドポイントが返すユーザー表現。
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role,omitempty"`
}

// SignUp は新規アカウントを作成する。
// POST /auth/signup
// 入力検証はIdP呼び出しの前に行い、不正な入力はIdPに到達させない。
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("body"))
		return
	}

	if apiErr := validateSignUp(req); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	sess, err := h.service.SignUp(r.Context(), req.Email, req.Password, strings.TrimSpace(req.FullName))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialsError())
			return
		}
		slog.Error("sign up failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewProviderUnavailableError())
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSignUp()
	}

	h.writeSessionResponse(w, r, sess, http.StatusCreated)
}

// SignIn はメールアドレスとパスワードで認証する。
// POST /auth/login
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("body"))
		return
	}
	if req.Email == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("email"))
		return
	}
	if req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("password"))
		return
	}

	sess, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		slog.Error("sign in failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewProviderUnavailableError())
		return
	}

	h.writeSessionResponse(w, r, sess, http.StatusOK)
}

// SignOut はセッションを破棄する。
// POST /auth/logout
// IdP側の破棄に失敗してもCookieは必ずクリアする。
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		if signOutErr := h.service.SignOut(r.Context(), c.Value); signOutErr != nil {
			slog.Error("failed to sign out from provider", slog.String("error", signOutErr.Error()))
		}
	}

	middleware.ClearSessionCookies(w, h.config.Cookies)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
// セッションコンテキストミドルウェアが解決した値のみを参照する。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil || sess.Identity == nil {
		middleware.WriteUnauthorized(w)
		return
	}

	role, _ := middleware.RoleFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{
		ID:       sess.Identity.ID,
		Email:    sess.Identity.Email,
		FullName: sess.Identity.FullName,
		Role:     string(role),
	})
}

// Callback はIdPの認可コードをセッションに交換する。
// GET /api/auth/callback?code=xxx&next=/dashboard/client
// 初回ログインではミラー行が遅延作成される。
// 成功時はnext（検証済みの相対パス）またはロールホームへリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, authz.LoginPath, http.StatusTemporaryRedirect)
		return
	}

	sess, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("auth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, authz.LoginPath, http.StatusTemporaryRedirect)
		return
	}

	middleware.WriteSessionCookies(w, identity.Credentials{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}, h.config.Cookies)

	target := sanitizeNextPath(r.URL.Query().Get("next"))
	if target == "" {
		role, _ := h.service.ResolveRole(r.Context(), sess.Identity)
		target = authz.RoleHome(role)
	}

	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// writeSessionResponse はセッションCookieを発行し、ユーザー情報をJSONで返す。
func (h *AuthHandler) writeSessionResponse(w http.ResponseWriter, r *http.Request, sess *model.Session, status int) {
	middleware.WriteSessionCookies(w, identity.Credentials{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}, h.config.Cookies)

	role, _ := h.service.ResolveRole(r.Context(), sess.Identity)

	resp := userResponse{Role: string(role)}
	if sess.Identity != nil {
		resp.ID = sess.Identity.ID
		resp.Email = sess.Identity.Email
		resp.FullName = sess.Identity.FullName
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// validateSignUp はサインアップ入力を検証する。
func validateSignUp(req signUpRequest) *model.APIError {
	fields := []struct {
		name  string
		value string
	}{
		{"full_name", req.FullName},
		{"email", req.Email},
		{"password", req.Password},
		{"confirm_password", req.ConfirmPassword},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return model.NewMissingFieldError(f.name)
		}
	}

	if req.Password != req.ConfirmPassword {
		return model.NewPasswordMismatchError()
	}
	if len(req.Password) < minPasswordLength {
		return model.NewPasswordTooShortError(minPasswordLength)
	}

	return nil
}

// sanitizeNextPath はリダイレクト先として安全な相対パスのみを通す。
// 外部URLやプロトコル相対URLは空文字列に落とす。
func sanitizeNextPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	if strings.ContainsAny(next, "\\\r\n") {
		return ""
	}
	return next
}
