// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sixtyk/internal/model"
)

// SessionCookieName はログインセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey       = contextKey("user_id")
	sessionTokenContextKey = contextKey("session_token")
	userIDSinkContextKey   = contextKey("user_id_sink")
)

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はCookieからログインセッションを読み取り、
// ユーザーIDとセッショントークンをリクエストコンテキストに注入する。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteError(w, model.NewUnauthenticatedError())
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session", slog.String("error", err.Error()))
				WriteError(w, model.NewUnauthenticatedError())
				return
			}
			if session == nil {
				WriteError(w, model.NewUnauthenticatedError())
				return
			}

			if sink, ok := r.Context().Value(userIDSinkContextKey).(*string); ok {
				*sink = session.UserID
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
			ctx = context.WithValue(ctx, sessionTokenContextKey, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// SessionTokenFromContext はリクエストコンテキストからログインセッションIDを取得する。
func SessionTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(sessionTokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("session token not found in context")
	}
	return token, nil
}

// ContextWithSession はコンテキストにユーザーIDとセッショントークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, userID, token string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, sessionTokenContextKey, token)
}

// withUserIDSink は内側のミドルウェアが確定したユーザーIDを外側へ書き戻す先を登録する。
func withUserIDSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userIDSinkContextKey, sink)
}
