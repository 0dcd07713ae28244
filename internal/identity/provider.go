// Package identity は外部IdPへのセッション解決・認証フローを提供する。
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crotonn/writers-backend/internal/model"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っている場合のエラー。
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrStaleRefreshToken はリフレッシュトークンが既にローテーション済みの場合のエラー。
// 同一ユーザーの並行リクエストがリフレッシュに勝った可能性があり、致命的ではない。
var ErrStaleRefreshToken = errors.New("refresh token already rotated")

// Provider は外部IdPへの操作を抽象化するインターフェース。
// ネットワーク呼び出しはすべて失敗しうる。テストではモックに差し替える。
type Provider interface {
	// SignUp はアカウントを作成し、発行されたセッションを返す。
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Session, error)
	// SignInWithPassword はメールアドレスとパスワードで認証する。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	// GetUser はアクセストークンに紐づくIdentityを取得する。
	// トークンが無効な場合はエラーを返す。
	GetUser(ctx context.Context, accessToken string) (*model.Identity, error)
	// Refresh はリフレッシュトークンで新しいセッションを発行する。
	// トークンがローテーション済みの場合はErrStaleRefreshTokenを返す。
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	// SignOut はIdP側のセッションを破棄する。
	SignOut(ctx context.Context, accessToken string) error
	// ExchangeCode は認可コードをセッションに交換する。
	ExchangeCode(ctx context.Context, code string) (*model.Session, error)
}

// HTTPProviderConfig はHTTPProviderの設定。
type HTTPProviderConfig struct {
	// BaseURL はIdPのベースURL。テストではhttptestサーバーを指す。
	BaseURL string
	// AnonKey は公開APIキー。全リクエストのapikeyヘッダーに付与する。
	AnonKey string
	// Timeout はIdPへのHTTPリクエストのタイムアウト。
	Timeout time.Duration
}

// HTTPProvider はGoTrue互換のIdP REST APIを呼び出すProvider実装。
type HTTPProvider struct {
	config HTTPProviderConfig
	client *http.Client
}

// NewHTTPProvider はHTTPProviderを生成する。
func NewHTTPProvider(config HTTPProviderConfig) *HTTPProvider {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// tokenResponse はIdPのトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

// userResponse はIdPのユーザーエンドポイントのレスポンス。
type userResponse struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	UserMetadata map[string]string `json:"user_metadata"`
}

// SignUp はアカウントを作成し、発行されたセッションを返す。
func (p *HTTPProvider) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}
	resp, err := p.postJSON(ctx, "/auth/v1/signup", "", body)
	if err != nil {
		return nil, err
	}
	return p.parseTokenResponse(resp)
}

// SignInWithPassword はメールアドレスとパスワードで認証する。
func (p *HTTPProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	resp, err := p.postJSON(ctx, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}
	return p.parseTokenResponse(resp)
}

// GetUser はアクセストークンに紐づくIdentityを取得する。
func (p *HTTPProvider) GetUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	p.setHeaders(req, accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var user userResponse
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("empty user id in response")
	}

	return identityFromUser(user), nil
}

// Refresh はリフレッシュトークンで新しいセッションを発行する。
func (p *HTTPProvider) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	body := map[string]any{
		"refresh_token": refreshToken,
	}
	resp, err := p.postJSON(ctx, "/auth/v1/token?grant_type=refresh_token", "", body)
	if err != nil {
		// 4xxはローテーション済みトークンとして区別する
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, fmt.Errorf("%w: %v", ErrStaleRefreshToken, err)
		}
		return nil, err
	}
	return p.parseTokenResponse(resp)
}

// SignOut はIdP側のセッションを破棄する。
func (p *HTTPProvider) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/auth/v1/logout", strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to create logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.setHeaders(req, accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("logout failed with status %d", resp.StatusCode)
	}
	return nil
}

// ExchangeCode は認可コードをセッションに交換する。
func (p *HTTPProvider) ExchangeCode(ctx context.Context, code string) (*model.Session, error) {
	body := map[string]any{
		"auth_code": code,
	}
	resp, err := p.postJSON(ctx, "/auth/v1/token?grant_type=authorization_code", "", body)
	if err != nil {
		return nil, err
	}
	return p.parseTokenResponse(resp)
}

// statusError はIdPが非2xxを返した場合のエラー。
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

// postJSON はJSONボディをPOSTし、2xxの場合にレスポンスボディを返す。
func (p *HTTPProvider) postJSON(ctx context.Context, path, accessToken string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.setHeaders(req, accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			// 認証系エンドポイントの4xxは資格情報不正として扱う
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, &statusError{status: resp.StatusCode, body: string(raw)})
		}
		return nil, &statusError{status: resp.StatusCode, body: string(raw)}
	}

	return raw, nil
}

// setHeaders はapikeyヘッダーと（存在する場合）Authorizationヘッダーを設定する。
func (p *HTTPProvider) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", p.config.AnonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// parseTokenResponse はトークンエンドポイントのレスポンスをSessionに変換する。
func (p *HTTPProvider) parseTokenResponse(raw []byte) (*model.Session, error) {
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	if tr.User.ID == "" {
		return nil, fmt.Errorf("empty user id in token response")
	}

	return &model.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		Identity:     identityFromUser(tr.User),
	}, nil
}

// identityFromUser はIdPのユーザーレスポンスをIdentityに変換する。
func identityFromUser(user userResponse) *model.Identity {
	fullName := user.UserMetadata["full_name"]
	if fullName == "" {
		// 表示名未設定の場合はメールのローカル部を使う
		if at := strings.Index(user.Email, "@"); at > 0 {
			fullName = user.Email[:at]
		}
	}
	return &model.Identity{
		ID:       user.ID,
		Email:    user.Email,
		FullName: fullName,
		Metadata: user.UserMetadata,
	}
}

// compile-time interface check
var _ Provider = (*HTTPProvider)(nil)
