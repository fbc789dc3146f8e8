package game

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/hitoshi/sixtyk/internal/model"
)

// 画面に表示するセカンドチャンスのメッセージ
const (
	msgChallengeReady = "Heart Gameを解けばもう一度チャンスがあります。"
	msgChallengeError = "Heart Gameを読み込めませんでした。もう一度お試しください。"
	msgChallengeWon   = "正解！制限時間が延長されました。"
	msgChallengeLost  = "不正解です。新しいゲームを始めてください。"
)

// offerState は1回の終了に対するセカンドチャンスの状態。
// 回答（正誤問わず）または辞退で消費され、次の終了まで再提示されない。
type offerState struct {
	available bool
	loading   bool
	challenge *model.Challenge
	message   string
}

// RequestChallenge はパズルを取得して保持する。
// 取得に失敗してもオファーは残り、再試行できる。既に保持している場合は同じ問題を返し、
// 取得中の場合はloadingのスナップショットを返す。
func (s *Session) RequestChallenge(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.touch()
	if err := s.offerErrorLocked(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if s.offer.challenge != nil || s.offer.loading {
		// 取得済みか取得中なら新たに取りに行かない
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	s.offer.loading = true
	s.offer.message = ""
	s.offerToken++
	token := s.offerToken
	s.mu.Unlock()

	// ログアウトでセッションのctxがキャンセルされたら取得も止める
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	ch, err := s.deps.Puzzles.FetchChallenge(fetchCtx)
	stop()
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseTerminated {
		return s.snapshotLocked(), model.NewSessionTerminatedError()
	}
	if token != s.offerToken {
		// 待っている間に辞退・リスタート・別の終了が起きた
		return s.snapshotLocked(), model.NewOfferUnavailableError()
	}
	s.offer.loading = false
	if err != nil {
		s.offer.message = msgChallengeError
		s.deps.Metrics.SecondChance("fetch_error")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			err = model.NewPuzzleFetchError(err)
		}
		return s.snapshotLocked(), err
	}

	s.offer.challenge = &ch
	s.offer.message = msgChallengeReady
	s.deps.Metrics.SecondChance("offered")
	return s.snapshotLocked(), nil
}

// AnswerChallenge は1回だけ回答を受け付ける。
// 正解ならボーナス時間を加えてActiveに戻る。不正解なら時間は変えず終了状態のまま。
func (s *Session) AnswerChallenge(answer int) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase == PhaseTerminated {
		return s.snapshotLocked(), false, model.NewSessionTerminatedError()
	}
	if !s.phase.Terminal() || s.offer.challenge == nil {
		return s.snapshotLocked(), false, model.NewNoChallengeError()
	}
	if !slices.Contains(s.cfg.Candidates, answer) {
		return s.snapshotLocked(), false, model.NewValidationError("answer", "回答候補から選んでください")
	}

	correct := answer == s.offer.challenge.CorrectAnswer
	s.offerToken++
	if !correct {
		s.offer = offerState{message: msgChallengeLost}
		s.deps.Metrics.SecondChance("lost")
		s.log.Info("second chance failed", slog.String("phase", string(s.phase)))
		return s.snapshotLocked(), false, nil
	}

	s.grant()
	s.offer = offerState{message: msgChallengeWon}
	s.deps.Metrics.SecondChance("won")
	s.log.Info("second chance granted", slog.Int("time_remaining", s.timeRemaining))
	return s.snapshotLocked(), true, nil
}

// DismissOffer はセカンドチャンスを辞退する。
func (s *Session) DismissOffer() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.offerErrorLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	s.offer = offerState{}
	s.offerToken++
	s.deps.Metrics.SecondChance("dismissed")
	return s.snapshotLocked(), nil
}

// grant は終了状態からActiveへ戻す。muを保持した状態で呼ぶ。
func (s *Session) grant() {
	s.epoch++
	s.phase = PhaseActive
	s.cause = ""
	s.timeRemaining += s.cfg.bonusSeconds()
	s.scoreSubmitted = false
	s.inFlight = false
	s.lastError = ""
	s.lastGameOver = s.deps.Engine.GameOver()
	s.startTicker()
}

func (s *Session) offerErrorLocked() error {
	if s.phase == PhaseTerminated {
		return model.NewSessionTerminatedError()
	}
	if !s.phase.Terminal() || !s.offer.available {
		return model.NewOfferUnavailableError()
	}
	return nil
}
