package game

import (
	"log/slog"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
)

// leaderboardState は最後に取得したランキング。取得のたびに丸ごと置き換える。
type leaderboardState struct {
	entries   []model.LeaderboardEntry
	loading   bool
	loaded    bool
	message   string
	fetchedAt time.Time
}

// goRefresh はリーダーボード取得をバックグラウンドで開始する。
func (s *Session) goRefresh() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLeaderboard()
	}()
}

// refreshLeaderboard は上位N件を取得して置き換える。
// 並行した取得は順序付けせず、最後に返ってきた結果を採用する。
func (s *Session) refreshLeaderboard() {
	s.mu.Lock()
	if s.phase == PhaseTerminated {
		s.mu.Unlock()
		return
	}
	s.board.loading = true
	s.mu.Unlock()

	start := s.deps.Clock.Now()
	entries, err := s.deps.Scores.FetchTopScores(s.ctx, s.cfg.LeaderboardLimit)
	s.deps.Metrics.LeaderboardRefreshed(s.deps.Clock.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseTerminated {
		return
	}
	s.board.loading = false
	if err != nil {
		s.board.message = model.NewLeaderboardFetchError(err).Message
		s.log.Warn("leaderboard refresh failed", slog.String("error", err.Error()))
		return
	}
	if len(entries) > s.cfg.LeaderboardLimit {
		entries = entries[:s.cfg.LeaderboardLimit]
	}
	for i := range entries {
		if entries[i].PlayerDisplayName == "" {
			entries[i].PlayerDisplayName = model.UnknownPlayerName
		}
	}
	s.board = leaderboardState{
		entries:   entries,
		loaded:    true,
		fetchedAt: s.deps.Clock.Now(),
	}
}

// LeaderboardView は画面用のリーダーボード。
type LeaderboardView struct {
	Entries   []model.LeaderboardEntry `json:"entries"`
	Loading   bool                     `json:"loading"`
	Message   string                   `json:"message,omitempty"`
	FetchedAt *time.Time               `json:"fetched_at,omitempty"`
}

func (b leaderboardState) view() LeaderboardView {
	v := LeaderboardView{
		Entries: append([]model.LeaderboardEntry{}, b.entries...),
		Loading: b.loading,
		Message: b.message,
	}
	if b.loaded {
		t := b.fetchedAt
		v.FetchedAt = &t
	}
	return v
}

// Leaderboard は現在のリーダーボードを返す。
func (s *Session) Leaderboard() LeaderboardView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.view()
}
