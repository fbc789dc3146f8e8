package game

import "github.com/hitoshi/sixtyk/internal/model"

// OfferView は画面用のセカンドチャンスの状態。正解は含めない。
type OfferView struct {
	Available      bool   `json:"available"`
	Loading        bool   `json:"loading"`
	PromptAssetRef string `json:"prompt_asset_ref,omitempty"`
	Candidates     []int  `json:"candidates,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Snapshot はUIに返すセッションの状態。
type Snapshot struct {
	Phase             Phase             `json:"phase"`
	TimeRemaining     int               `json:"time_remaining_seconds"`
	TimerRunning      bool              `json:"timer_running"`
	Score             int               `json:"score"`
	PlayerName        string            `json:"player_name"`
	ScoreSubmitted    bool              `json:"score_submitted"`
	SubmissionPending bool              `json:"submission_pending"`
	Cause             model.ScoreReason `json:"terminal_cause,omitempty"`
	SecondChance      OfferView         `json:"second_chance"`
	Leaderboard       LeaderboardView   `json:"leaderboard"`
	LastError         string            `json:"last_error,omitempty"`
}

// Snapshot は現在の状態を返す。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:             s.phase,
		TimeRemaining:     s.timeRemaining,
		TimerRunning:      s.phase == PhaseActive && s.tickStop != nil,
		Score:             s.deps.Engine.Score(),
		PlayerName:        s.identity.DisplayName,
		ScoreSubmitted:    s.scoreSubmitted,
		SubmissionPending: s.inFlight,
		Cause:             s.cause,
		Leaderboard:       s.board.view(),
		LastError:         s.lastError,
	}
	snap.SecondChance = OfferView{
		Available: s.offer.available,
		Loading:   s.offer.loading,
		Message:   s.offer.message,
	}
	if s.offer.challenge != nil {
		snap.SecondChance.PromptAssetRef = s.offer.challenge.PromptAssetRef
		snap.SecondChance.Candidates = append([]int{}, s.cfg.Candidates...)
	}
	return snap
}
