package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sixtyk/internal/middleware"
	"github.com/hitoshi/sixtyk/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はライブセッションを終了し、ログインセッション・スコア・ユーザーを削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はアカウント管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookies AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cookies AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookies: cookies,
	}
}

// Withdraw はプレイヤーの退会処理を実行する。
// DELETE /api/account
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.cookies.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
