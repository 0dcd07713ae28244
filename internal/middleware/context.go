// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/crotonn/writers-backend/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// sessionContextKey はリクエストコンテキストに解決済みセッションを格納するためのキー。
	sessionContextKey = contextKey("session")
	// roleContextKey はリクエストコンテキストに解決済みロールを格納するためのキー。
	roleContextKey = contextKey("role")
)

// ContextWithSession は解決済みのセッションとロールをコンテキストに注入する。
// セッション解決はリクエストごとに1回だけ行い、下流はこのコンテキストを参照する。
func ContextWithSession(ctx context.Context, sess *model.Session, role model.Role) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, sess)
	ctx = context.WithValue(ctx, roleContextKey, role)
	if sess != nil {
		ctx = context.WithValue(ctx, userIDContextKey, sess.UserID())
	}
	return ctx
}

// SessionFromContext はリクエストコンテキストから解決済みセッションを取得する。
// 未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// RoleFromContext はリクエストコンテキストから解決済みロールを取得する。
// 未認証の場合はok=falseを返す。
func RoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleContextKey).(model.Role)
	if !ok || role == "" {
		return "", false
	}
	return role, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションコンテキストミドルウェアを通過した認証済みリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDのみを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
