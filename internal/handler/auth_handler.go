// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sixtyk/internal/auth"
	"github.com/hitoshi/sixtyk/internal/engine"
	"github.com/hitoshi/sixtyk/internal/game"
	"github.com/hitoshi/sixtyk/internal/middleware"
	"github.com/hitoshi/sixtyk/internal/model"
)

// playerNameCookie はUI表示用のプレイヤー名Cookie。JavaScriptから読み取れる。
const playerNameCookie = "player_name"

// maxRequestBody はJSONリクエストボディの上限。
const maxRequestBody = 4 << 10

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, identifier, credential string, profile auth.Profile) error
	SignIn(ctx context.Context, identifier, credential string) (model.Identity, *model.Session, error)
	GetCurrentIdentity(ctx context.Context, sessionToken string) (model.Identity, bool, error)
}

// SessionLifecycle はログイン・ログアウトに合わせてゲームセッションを開閉する。
type SessionLifecycle interface {
	OpenWithIdentity(token string, identity model.Identity) *game.Session
	Close(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインアップ・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionLifecycle
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionLifecycle, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

type credentialsRequest struct {
	Identifier  string `json:"identifier"`
	Credential  string `json:"credential"`
	DisplayName string `json:"display_name"`
}

type identityResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type loginResponse struct {
	Identity identityResponse `json:"identity"`
	Layout   engine.Layout    `json:"layout"`
	State    game.Snapshot    `json:"state"`
}

// SignUp はアカウントを登録する。ログインは別途行う。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.SignUp(r.Context(), req.Identifier, req.Credential, auth.Profile{DisplayName: req.DisplayName})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Login は認証し、セッションCookieを設定してゲームセッションを開始する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, session, err := h.service.SignIn(r.Context(), req.Identifier, req.Credential)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	gs := h.sessions.OpenWithIdentity(session.ID, identity)

	h.config.setCookie(w, middleware.SessionCookieName, session.ID, h.config.SessionMaxAge, true)
	h.config.setCookie(w, playerNameCookie, identity.DisplayName, h.config.SessionMaxAge, false)

	writeJSON(w, http.StatusOK, loginResponse{
		Identity: identityResponse{UserID: identity.UserID, DisplayName: identity.DisplayName},
		Layout:   gs.Layout(),
		State:    gs.Snapshot(),
	})
}

// Logout はゲームセッションを終了し、ログインセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if closeErr := h.sessions.Close(r.Context(), cookie.Value); closeErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", closeErr.Error()))
		}
	}

	h.config.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}

	identity, ok, err := h.service.GetCurrentIdentity(r.Context(), cookie.Value)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !ok {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, identityResponse{UserID: identity.UserID, DisplayName: identity.DisplayName})
}

func (c AuthHandlerConfig) setCookie(w http.ResponseWriter, name, value string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c AuthHandlerConfig) clearSessionCookies(w http.ResponseWriter) {
	c.setCookie(w, middleware.SessionCookieName, "", -1, true)
	c.setCookie(w, playerNameCookie, "", -1, false)
}

// decodeJSON はボディをvにデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, model.NewValidationError("body", "JSONとして解釈できません"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
