package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crotonn/writers-backend/internal/model"
	"github.com/crotonn/writers-backend/internal/repository"
)

// Credentials はリクエストが運ぶ資格情報のペア。
// Cookieから読み取られ、リフレッシュ時には新しい値が書き戻される。
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// RefreshWindow は有効期限のこの時間前からリフレッシュを試みる。
	RefreshWindow time.Duration
}

// Service はセッション解決・ロール解決・認証フローのビジネスロジックを提供する。
// プロセス内に共有可変状態を持たず、全操作はリクエストスコープで完結する。
type Service struct {
	provider Provider
	profiles repository.ProfileRepository
	events   *Events
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(provider Provider, profiles repository.ProfileRepository, events *Events, config ServiceConfig) *Service {
	if config.RefreshWindow == 0 {
		config.RefreshWindow = 5 * time.Minute
	}
	if events == nil {
		events = NewEvents()
	}
	return &Service{
		provider: provider,
		profiles: profiles,
		events:   events,
		config:   config,
	}
}

// Events はセッション変化イベントのブロードキャスタを返す。
func (s *Service) Events() *Events {
	return s.events
}

// Resolve は資格情報から現在のセッションを解決する。
// 戻り値のセッションがnilの場合は未認証として扱う。トークン不正・期限切れ・
// IdP到達不能はいずれも未認証と区別されない。
// リフレッシュによって資格情報がローテーションされた場合は、書き戻すべき
// 新しいCredentialsを第2戻り値として返す。
func (s *Service) Resolve(ctx context.Context, creds Credentials) (*model.Session, *Credentials) {
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, nil
	}

	exp, parseOK := tokenExpiry(creds.AccessToken)
	expired := !parseOK || !exp.After(time.Now())
	nearExpiry := parseOK && time.Until(exp) < s.config.RefreshWindow

	if expired || nearExpiry {
		if creds.RefreshToken != "" {
			if sess, rotated := s.refresh(ctx, creds, exp, parseOK); sess != nil {
				return sess, rotated
			}
			return nil, nil
		}
		if expired {
			return nil, nil
		}
		// 更新手段がない場合は期限内の限り現行トークンで続行する
	}

	ident, err := s.provider.GetUser(ctx, creds.AccessToken)
	if err != nil {
		slog.Debug("access token rejected by provider",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	return &model.Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    exp,
		Identity:     ident,
	}, nil
}

// refresh はリフレッシュトークンで新しいセッションを発行する。
// 同一ユーザーの並行リクエストとのローテーション競合（stale rejection）は、
// 現行アクセストークンの再検証で1回だけリトライする。
func (s *Service) refresh(ctx context.Context, creds Credentials, exp time.Time, parseOK bool) (*model.Session, *Credentials) {
	sess, err := s.provider.Refresh(ctx, creds.RefreshToken)
	if err == nil {
		s.events.Publish(Event{Type: EventRefreshed, UserID: sess.UserID()})
		return sess, &Credentials{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
		}
	}

	if errors.Is(err, ErrStaleRefreshToken) && parseOK && exp.After(time.Now()) {
		// 別リクエストがリフレッシュに勝った場合、手元のアクセストークンは
		// まだ有効なことがある。失敗させずに現行トークンで続行を試みる。
		ident, gerr := s.provider.GetUser(ctx, creds.AccessToken)
		if gerr == nil {
			slog.Debug("stale refresh token; current access token still valid",
				slog.String("user_id", ident.ID),
			)
			return &model.Session{
				AccessToken:  creds.AccessToken,
				RefreshToken: creds.RefreshToken,
				ExpiresAt:    exp,
				Identity:     ident,
			}, nil
		}
	}

	slog.Debug("session refresh failed",
		slog.String("error", err.Error()),
	)
	return nil, nil
}

// ResolveRole はIdentityのロールを解決する。Identityがない場合はok=falseを返す。
// ミラー行が未作成の場合は暫定デフォルトとしてRoleClientを返す。
// 整形式のIdentityに対してエラーを返すことはない。
func (s *Service) ResolveRole(ctx context.Context, ident *model.Identity) (model.Role, bool) {
	if ident == nil {
		return "", false
	}

	profile, err := s.profiles.GetByID(ctx, ident.ID)
	if err != nil {
		slog.Warn("profile lookup failed; falling back to default role",
			slog.String("user_id", ident.ID),
			slog.String("error", err.Error()),
		)
		return model.RoleClient, true
	}
	if profile == nil {
		return model.RoleClient, true
	}
	return profile.Role, true
}

// SignUp はIdPにアカウントを作成し、ミラー行を初期化してセッションを返す。
// 入力値の検証は呼び出し側（ハンドラー層）で行い、IdPには検証済みの値のみ渡す。
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*model.Session, error) {
	metadata := map[string]string{
		"full_name": fullName,
		"role":      string(model.RoleClient),
	}

	sess, err := s.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	s.ensureProfile(ctx, sess.Identity)

	s.events.Publish(Event{Type: EventSignedIn, UserID: sess.UserID()})
	slog.Info("new account created",
		slog.String("user_id", sess.UserID()),
		slog.String("email", email),
	)
	return sess, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	s.events.Publish(Event{Type: EventSignedIn, UserID: sess.UserID()})
	slog.Info("user signed in", slog.String("user_id", sess.UserID()))
	return sess, nil
}

// SignOut はIdP側のセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return fmt.Errorf("access token is required")
	}

	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	s.events.Publish(Event{Type: EventSignedOut})
	slog.Info("user signed out")
	return nil
}

// HandleCallback は認可コードをセッションに交換する。
// 初回ログインの場合はミラー行を遅延作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	sess, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	s.ensureProfile(ctx, sess.Identity)

	s.events.Publish(Event{Type: EventSignedIn, UserID: sess.UserID()})
	slog.Info("callback login completed", slog.String("user_id", sess.UserID()))
	return sess, nil
}

// ensureProfile はミラー行が存在しない場合に作成する。
// 挿入は冪等であり、並行初回ログインによる重複はエラーとして扱わずログに残す。
func (s *Service) ensureProfile(ctx context.Context, ident *model.Identity) {
	if ident == nil {
		return
	}

	profile := &model.Profile{
		ID:        ident.ID,
		Email:     ident.Email,
		FullName:  ident.FullName,
		Role:      model.ParseRole(ident.Metadata["role"]),
		CreatedAt: time.Now(),
	}

	if err := s.profiles.Insert(ctx, profile); err != nil {
		// 初回ログインの二重実行による重複挿入は致命的ではない
		slog.Warn("profile provisioning failed",
			slog.String("user_id", ident.ID),
			slog.String("error", err.Error()),
		)
	}
}

// tokenExpiry はアクセストークン（JWT）のexpクレームを読み取る。
// 署名検証はIdPに委譲しているため、ここではリフレッシュ判定のための
// クレーム読み出しのみを行う。
func tokenExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
