package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crotonn/writers-backend/internal/identity"
	"github.com/crotonn/writers-backend/internal/middleware"
	"github.com/crotonn/writers-backend/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	signUpFunc         func(ctx context.Context, email, password, fullName string) (*model.Session, error)
	signInFunc         func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFunc        func(ctx context.Context, accessToken string) error
	handleCallbackFunc func(ctx context.Context, code string) (*model.Session, error)
	resolveRoleFunc    func(ctx context.Context, ident *model.Identity) (model.Role, bool)
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) SignUp(ctx context.Context, email, password, fullName string) (*model.Session, error) {
	if m.signUpFunc != nil {
		return m.signUpFunc(ctx, email, password, fullName)
	}
	return nil, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFunc != nil {
		return m.signInFunc(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx, accessToken)
	}
	return nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFunc != nil {
		return m.handleCallbackFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) ResolveRole(ctx context.Context, ident *model.Identity) (model.Role, bool) {
	if m.resolveRoleFunc != nil {
		return m.resolveRoleFunc(ctx, ident)
	}
	return model.RoleClient, true
}

func sessionFor(userID, email string) *model.Session {
	return &model.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity: &model.Identity{
			ID:       userID,
			Email:    email,
			FullName: "Test User",
		},
	}
}

func newAuthHandler(service AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(service, nil, AuthHandlerConfig{
		Cookies: middleware.SessionCookieConfig{MaxAge: 3600},
	})
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestSignUp_ValidInput_CreatesAccountAndSetsCookies(t *testing.T) {
	providerCalled := false
	h := newAuthHandler(&mockAuthService{
		signUpFunc: func(ctx context.Context, email, password, fullName string) (*model.Session, error) {
			providerCalled = true
			if email != "new@example.com" || password != "secret123" || fullName != "New User" {
				t.Errorf("unexpected sign up args: %s %s %s", email, password, fullName)
			}
			return sessionFor("u-1", email), nil
		},
	})

	w := postJSON(t, h.SignUp, "/auth/signup",
		`{"full_name":"New User","email":"new@example.com","password":"secret123","confirm_password":"secret123"}`)

	if !providerCalled {
		t.Fatal("service should be called for valid input")
	}
	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	names := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = true
	}
	if !names["access_token"] || !names["refresh_token"] {
		t.Errorf("session cookies should be set: %v", names)
	}
}

func TestSignUp_MissingFields_RejectedBeforeProviderCall(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		signUpFunc: func(ctx context.Context, email, password, fullName string) (*model.Session, error) {
			t.Error("provider should not be called for invalid input")
			return nil, nil
		},
	})

	w := postJSON(t, h.SignUp, "/auth/signup",
		`{"full_name":"","email":"new@example.com","password":"secret123","confirm_password":"secret123"}`)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeMissingField {
		t.Errorf("code = %q, want MISSING_FIELD", body.Code)
	}
}

func TestSignUp_PasswordMismatch_Returns400(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	w := postJSON(t, h.SignUp, "/auth/signup",
		`{"full_name":"U","email":"u@example.com","password":"secret123","confirm_password":"different"}`)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodePasswordMismatch {
		t.Errorf("code = %q, want PASSWORD_MISMATCH", body.Code)
	}
}

func TestSignUp_ShortPassword_Returns400(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	w := postJSON(t, h.SignUp, "/auth/signup",
		`{"full_name":"U","email":"u@example.com","password":"abc","confirm_password":"abc"}`)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodePasswordTooShort {
		t.Errorf("code = %q, want PASSWORD_TOO_SHORT", body.Code)
	}
}

func TestSignIn_ValidCredentials_SetsCookiesAndReturnsUser(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		signInFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return sessionFor("u-1", email), nil
		},
		resolveRoleFunc: func(ctx context.Context, ident *model.Identity) (model.Role, bool) {
			return model.RoleWriter, true
		},
	})

	w := postJSON(t, h.SignIn, "/auth/login",
		`{"email":"writer@example.com","password":"secret123"}`)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp userResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != "u-1" || resp.Role != "writer" {
		t.Errorf("response = %+v, want u-1/writer", resp)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Error("session cookies should be set")
	}
}

func TestSignIn_InvalidCredentials_Returns401(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		signInFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, identity.ErrInvalidCredentials
		},
	})

	w := postJSON(t, h.SignIn, "/auth/login",
		`{"email":"u@example.com","password":"wrong"}`)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want INVALID_CREDENTIALS", body.Code)
	}
}

func TestSignIn_ProviderUnreachable_Returns502(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		signInFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, context.DeadlineExceeded
		},
	})

	w := postJSON(t, h.SignIn, "/auth/login",
		`{"email":"u@example.com","password":"secret123"}`)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadGateway)
	}
}

func TestSignIn_MissingEmail_Returns400(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	w := postJSON(t, h.SignIn, "/auth/login", `{"password":"secret123"}`)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestSignOut_ClearsCookiesEvenIfProviderFails(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		signOutFunc: func(ctx context.Context, accessToken string) error {
			return context.DeadlineExceeded
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "tok"})
	w := httptest.NewRecorder()

	h.SignOut(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	cleared := 0
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 2 {
		t.Errorf("cleared cookies = %d, want 2", cleared)
	}
}

func TestMe_Authenticated_ReturnsUser(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	ctx := middleware.ContextWithSession(req.Context(), sessionFor("u-1", "u@example.com"), model.RoleClient)
	w := httptest.NewRecorder()

	h.Me(w, req.WithContext(ctx))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp userResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != "u-1" || resp.Email != "u@example.com" || resp.Role != "client" {
		t.Errorf("response = %+v", resp)
	}
}

func TestMe_Anonymous_Returns401(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCallback_ExchangesCodeAndRedirectsToNext(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		handleCallbackFunc: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return sessionFor("u-1", "u@example.com"), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=auth-code&next=%2Fdashboard%2Fclient", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
	if location := w.Result().Header.Get("Location"); location != "/dashboard/client" {
		t.Errorf("Location = %q, want /dashboard/client", location)
	}
	if len(w.Result().Cookies()) != 2 {
		t.Errorf("session cookies should be set: %v", w.Result().Cookies())
	}
}

func TestCallback_NoNext_RedirectsToRoleHome(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		handleCallbackFunc: func(ctx context.Context, code string) (*model.Session, error) {
			return sessionFor("u-1", "u@example.com"), nil
		},
		resolveRoleFunc: func(ctx context.Context, ident *model.Identity) (model.Role, bool) {
			return model.RoleWriter, true
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=auth-code", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if location := w.Result().Header.Get("Location"); location != "/dashboard/writer" {
		t.Errorf("Location = %q, want /dashboard/writer", location)
	}
}

func TestCallback_ExternalNext_FallsBackToRoleHome(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		handleCallbackFunc: func(ctx context.Context, code string) (*model.Session, error) {
			return sessionFor("u-1", "u@example.com"), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=auth-code&next=//evil.example.com", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if location := w.Result().Header.Get("Location"); location != "/dashboard/client" {
		t.Errorf("Location = %q, want role home fallback", location)
	}
}

func TestCallback_MissingCode_RedirectsToLogin(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		handleCallbackFunc: func(ctx context.Context, code string) (*model.Session, error) {
			t.Error("exchange should not be attempted without a code")
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if location := w.Result().Header.Get("Location"); location != "/auth/login" {
		t.Errorf("Location = %q, want /auth/login", location)
	}
}

func TestCallback_ExchangeFails_RedirectsToLoginWithoutCookies(t *testing.T) {
	h := newAuthHandler(&mockAuthService{
		handleCallbackFunc: func(ctx context.Context, code string) (*model.Session, error) {
			return nil, context.DeadlineExceeded
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=bad", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if location := w.Result().Header.Get("Location"); location != "/auth/login" {
		t.Errorf("Location = %q, want /auth/login", location)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("no cookies should be set on failure: %v", w.Result().Cookies())
	}
}
