// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Identity provider
	ProviderBaseURL    string
	ProviderAnonKey    string
	ProviderServiceKey string // サーバー専用。レスポンスやログに出してはならない。

	// Database
	DatabaseURL string

	// Session
	SessionMaxAge   int           // セッションCookieの有効期間（秒）
	RefreshWindow   time.Duration // 有効期限のこの時間前からリフレッシュを試みる
	ProviderTimeout time.Duration

	// Auth rate limit
	AuthRatePerMin int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.ProviderBaseURL = os.Getenv("PROVIDER_BASE_URL")
	if cfg.ProviderBaseURL == "" {
		missing = append(missing, "PROVIDER_BASE_URL")
	}

	cfg.ProviderAnonKey = os.Getenv("PROVIDER_ANON_KEY")
	if cfg.ProviderAnonKey == "" {
		missing = append(missing, "PROVIDER_ANON_KEY")
	}

	cfg.ProviderServiceKey = os.Getenv("PROVIDER_SERVICE_ROLE_KEY")
	if cfg.ProviderServiceKey == "" {
		missing = append(missing, "PROVIDER_SERVICE_ROLE_KEY")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RefreshWindow = getEnvDuration("SESSION_REFRESH_WINDOW", 5*time.Minute)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.AuthRatePerMin = getEnvInt("AUTH_RATE_PER_MIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
