package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sixtyk/internal/engine"
	"github.com/hitoshi/sixtyk/internal/game"
	"github.com/hitoshi/sixtyk/internal/middleware"
	"github.com/hitoshi/sixtyk/internal/model"
)

// SessionResolver はログインセッションに対応するゲームセッションを返す。
type SessionResolver interface {
	// Get はライブセッションがあれば返す。新しいセッションは開始しない。
	Get(token string) (*game.Session, bool)
	GetOrOpen(ctx context.Context, token string) (*game.Session, error)
}

// DisplayNameChanger は表示名を変更し、保存された名前を返す。
type DisplayNameChanger interface {
	ChangeDisplayName(ctx context.Context, userID, name string) (string, error)
}

// ScoreHistory はスコアの読み取りを行う。
type ScoreHistory interface {
	FetchTopScores(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	FetchMyScores(ctx context.Context, userID string) ([]model.LeaderboardEntry, error)
}

// GameHandler はゲームセッション操作のHTTPハンドラー。
type GameHandler struct {
	sessions SessionResolver
	names    DisplayNameChanger
	scores   ScoreHistory
	cookies  AuthHandlerConfig
	topN     int
}

// NewGameHandler はGameHandlerを生成する。topNが0以下なら既定のリーダーボード件数を使う。
func NewGameHandler(sessions SessionResolver, names DisplayNameChanger, scores ScoreHistory, cookies AuthHandlerConfig, topN int) *GameHandler {
	if topN <= 0 {
		topN = game.DefaultConfig().LeaderboardLimit
	}
	return &GameHandler{
		sessions: sessions,
		names:    names,
		scores:   scores,
		cookies:  cookies,
		topN:     topN,
	}
}

type gameResponse struct {
	Layout *engine.Layout `json:"layout,omitempty"`
	State  game.Snapshot  `json:"state"`
}

type reportRequest struct {
	Score    int  `json:"score"`
	GameOver bool `json:"game_over"`
}

type answerRequest struct {
	Answer *int `json:"answer"`
}

type answerResponse struct {
	Correct bool          `json:"correct"`
	State   game.Snapshot `json:"state"`
}

type playerNameRequest struct {
	DisplayName string `json:"display_name"`
}

// session はリクエストのログインセッションからゲームセッションを引く。失敗時はレスポンスを書き込む。
func (h *GameHandler) session(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	token, err := middleware.SessionTokenFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return nil, false
	}
	s, err := h.sessions.GetOrOpen(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return nil, false
	}
	return s, true
}

// State は現在のスナップショットと配札を返す。ライブセッションがなければ開始する。
// GET /api/game
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	layout := s.Layout()
	writeJSON(w, http.StatusOK, gameResponse{Layout: &layout, State: s.Snapshot()})
}

// Restart は新しいラウンドを配り直す。
// POST /api/game/restart
func (h *GameHandler) Restart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	layout, err := s.Restart()
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{Layout: &layout, State: s.Snapshot()})
}

// Report はブラウザのルールエンジンが算出したスコアと終了フラグを受け取る。
// POST /api/game/report
func (h *GameHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Report(req.Score, req.GameOver)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{State: snap})
}

// RequestChallenge はセカンドチャンスのパズルを取得する。
// 取得失敗はスナップショットのメッセージとして返し、再試行できる。
// POST /api/game/second-chance
func (h *GameHandler) RequestChallenge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.RequestChallenge(r.Context())
	if err != nil && !model.IsCategory(err, model.CategoryFetch) {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{State: snap})
}

// AnswerChallenge はパズルの回答を受け付ける。
// POST /api/game/second-chance/answer
func (h *GameHandler) AnswerChallenge(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Answer == nil {
		middleware.WriteError(w, model.NewValidationError("answer", "必須です"))
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, correct, err := s.AnswerChallenge(*req.Answer)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Correct: correct, State: snap})
}

// DismissOffer はセカンドチャンスを辞退する。
// POST /api/game/second-chance/dismiss
func (h *GameHandler) DismissOffer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.DismissOffer()
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{State: snap})
}

// Leaderboard はライブセッションが保持するリーダーボードを返す。
// ライブセッションがなければゲームを開始せず、スコアストアから直接読む。
// GET /api/leaderboard
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.SessionTokenFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}
	if s, ok := h.sessions.Get(token); ok {
		writeJSON(w, http.StatusOK, s.Leaderboard())
		return
	}

	entries, err := h.scores.FetchTopScores(r.Context(), h.topN)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, game.LeaderboardView{Entries: entries})
}

// MyScores はプレイヤー自身のスコア履歴を新しい順に返す。
// GET /api/scores/me
func (h *GameHandler) MyScores(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}
	entries, err := h.scores.FetchMyScores(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": entries})
}

// ChangePlayerName は表示名を変更し、ライブセッションにも反映する。
// PUT /api/game/player-name
func (h *GameHandler) ChangePlayerName(w http.ResponseWriter, r *http.Request) {
	var req playerNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	name, err := h.names.ChangeDisplayName(r.Context(), userID, req.DisplayName)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	s.SetDisplayName(name)

	h.cookies.setCookie(w, playerNameCookie, name, h.cookies.SessionMaxAge, false)
	writeJSON(w, http.StatusOK, gameResponse{State: s.Snapshot()})
}
