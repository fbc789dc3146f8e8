// Package game はゲームセッションのオーケストレーターを提供する。
// カウントダウン、ゲーム終了検知、スコアの1回限りの保存、リーダーボード更新、
// セカンドチャンス、ログアウト時の後始末を1つの状態機械で扱う。
package game

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/sixtyk/internal/engine"
	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/jonboulle/clockwork"
)

// Phase はゲームセッションの状態。
type Phase string

const (
	PhaseActive                Phase = "Active"
	PhaseTimedOut              Phase = "TimedOut"
	PhaseGameOverPendingChance Phase = "GameOverPendingChance"
	PhaseTerminated            Phase = "Terminated"
)

// Terminal はプレイ終了後の状態（TimedOut, GameOverPendingChance）かを返す。
func (p Phase) Terminal() bool {
	return p == PhaseTimedOut || p == PhaseGameOverPendingChance
}

// submitTimeout はスコア保存1回あたりの待ち時間上限。
const submitTimeout = 10 * time.Second

// ScoreStore はスコアの保存とランキング取得を行う。
type ScoreStore interface {
	SubmitScore(ctx context.Context, sub model.ScoreSubmission) error
	FetchTopScores(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// PuzzleSource はセカンドチャンス用のパズルを取得する。
type PuzzleSource interface {
	FetchChallenge(ctx context.Context) (model.Challenge, error)
}

// Reporter はクライアントからの報告を受け付けるルールエンジン。
type Reporter interface {
	engine.Engine
	Report(score int, gameOver bool) error
}

// Config はゲームの定数。
type Config struct {
	InitialTime      time.Duration
	Bonus            time.Duration
	TickInterval     time.Duration
	WinThreshold     int
	LeaderboardLimit int
	Policy           Policy
	Candidates       []int
}

// DefaultConfig は既定のゲーム設定を返す。
func DefaultConfig() Config {
	return Config{
		InitialTime:      180 * time.Second,
		Bonus:            60 * time.Second,
		TickInterval:     time.Second,
		WinThreshold:     20000,
		LeaderboardLimit: 20,
		Policy:           PolicyLosing,
		Candidates:       model.DefaultCandidateAnswers,
	}
}

func (c Config) initialSeconds() int { return int(c.InitialTime / time.Second) }
func (c Config) bonusSeconds() int   { return int(c.Bonus / time.Second) }

// Deps はセッションが利用する外部コンポーネント。
type Deps struct {
	Scores    ScoreStore
	Puzzles   PuzzleSource
	Engine    Reporter
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   Recorder
	NewLayout func() engine.Layout
}

func (d *Deps) fill() {
	if d.Engine == nil {
		d.Engine = engine.NewReported()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.NewLayout == nil {
		d.NewLayout = func() engine.Layout { return engine.NewLayout(nil) }
	}
}

// Session は1人のプレイヤーのゲームセッション。
// 状態はすべてmuの下で更新し、非同期処理の結果はepochとoccurrenceで再検証してから反映する。
type Session struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	identity       model.Identity
	phase          Phase
	timeRemaining  int
	cause          model.ScoreReason
	scoreSubmitted bool
	inFlight       bool
	lastGameOver   bool
	occurrence     uint64
	epoch          uint64
	lastError      string
	lastActivity   time.Time
	layout         engine.Layout

	tickerGen uint64
	tickStop  chan struct{}

	offer      offerState
	offerToken uint64

	board leaderboardState
}

// NewSession はセッションを生成する。Startを呼ぶまでタイマーは動かない。
func NewSession(identity model.Identity, cfg Config, deps Deps) *Session {
	deps.fill()
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = model.DefaultCandidateAnswers
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:           cfg,
		deps:          deps,
		log:           deps.Logger.With(slog.String("user_id", identity.UserID)),
		ctx:           ctx,
		cancel:        cancel,
		identity:      identity,
		phase:         PhaseActive,
		timeRemaining: cfg.initialSeconds(),
		lastActivity:  deps.Clock.Now(),
	}
}

// Start は最初のラウンドを配り、カウントダウンとリーダーボード取得を開始する。
func (s *Session) Start() engine.Layout {
	s.mu.Lock()
	layout := s.resetRound()
	s.mu.Unlock()

	s.deps.Metrics.SessionStarted()
	s.log.Info("game session started", slog.Int("time_remaining", s.cfg.initialSeconds()))
	s.goRefresh()
	return layout
}

// Restart は現在の状態に関わらず新しいラウンドを開始する。
func (s *Session) Restart() (engine.Layout, error) {
	s.mu.Lock()
	if s.phase == PhaseTerminated {
		s.mu.Unlock()
		return engine.Layout{}, model.NewSessionTerminatedError()
	}
	prev := s.phase
	layout := s.resetRound()
	s.mu.Unlock()

	s.log.Info("game restarted", slog.String("from_phase", string(prev)))
	s.goRefresh()
	return layout, nil
}

// resetRound はmuを保持した状態で呼ぶ。
func (s *Session) resetRound() engine.Layout {
	s.stopTicker()
	s.epoch++
	s.phase = PhaseActive
	s.timeRemaining = s.cfg.initialSeconds()
	s.cause = ""
	s.scoreSubmitted = false
	s.inFlight = false
	s.lastError = ""
	s.offer = offerState{}
	s.offerToken++

	s.layout = s.deps.NewLayout()
	s.deps.Engine.Reset(s.layout)
	s.lastGameOver = false
	s.touch()
	s.startTicker()
	return s.layout
}

// Report はルールエンジンの報告を取り込み、状態遷移を評価する。
// Active以外では盤面が止まっているため報告を無視する。
func (s *Session) Report(score int, gameOver bool) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase == PhaseTerminated {
		return s.snapshotLocked(), model.NewSessionTerminatedError()
	}
	if s.phase != PhaseActive {
		return s.snapshotLocked(), nil
	}
	if err := s.deps.Engine.Report(score, gameOver); err != nil {
		return s.snapshotLocked(), err
	}
	s.step(false)
	return s.snapshotLocked(), nil
}

// Tick はカウントダウンを1秒進める。通常はタイマーから呼ばれる。
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseActive {
		s.step(true)
	}
}

// step はtickとエンジンのgameOverを1回の評価で扱う。同時に起きた場合はゲーム終了を優先する。
// gameOverは立ち上がりのみを見るため、セカンドチャンス後にラッチされた値で再終了しない。
func (s *Session) step(tick bool) {
	gameOver := s.deps.Engine.GameOver()
	rising := gameOver && !s.lastGameOver
	s.lastGameOver = gameOver
	if rising {
		s.enterTerminal(PhaseGameOverPendingChance, model.ReasonGameEnded)
		return
	}
	if !tick {
		return
	}
	s.timeRemaining--
	if s.timeRemaining <= 0 {
		s.timeRemaining = 0
		s.enterTerminal(PhaseTimedOut, model.ReasonTimeout)
	}
}

func (s *Session) enterTerminal(phase Phase, reason model.ScoreReason) {
	s.stopTicker()
	s.phase = phase
	s.cause = reason
	s.occurrence++
	score := s.deps.Engine.Score()
	s.offer = offerState{available: s.cfg.Policy.Eligible(phase, score, s.cfg.WinThreshold)}
	s.offerToken++

	s.deps.Metrics.TerminalTransition(reason)
	s.log.Info("play ended",
		slog.String("phase", string(phase)),
		slog.String("reason", string(reason)),
		slog.Int("score", score),
		slog.Int("time_remaining", s.timeRemaining),
		slog.Bool("second_chance", s.offer.available),
	)
	s.beginSubmission(score)
}

// beginSubmission はスコア保存ガードを検査・設定し、保存を非同期で開始する。
func (s *Session) beginSubmission(score int) {
	if s.scoreSubmitted || s.inFlight {
		return
	}
	if !s.identity.Present() {
		s.log.Warn("score submission skipped: no user id")
		return
	}
	s.inFlight = true
	sub := model.ScoreSubmission{
		UserID:            s.identity.UserID,
		PlayerDisplayName: s.identity.DisplayName,
		Score:             score,
		Reason:            s.cause,
	}
	epoch, occ := s.epoch, s.occurrence

	s.wg.Add(1)
	go s.submit(sub, epoch, occ)
}

// submit はログアウトでは中断しない。結果は状態が変わっていれば破棄する。
func (s *Session) submit(sub model.ScoreSubmission, epoch, occ uint64) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	err := s.deps.Scores.SubmitScore(ctx, sub)
	cancel()

	s.mu.Lock()
	terminated := s.phase == PhaseTerminated
	stale := terminated || s.epoch != epoch || s.occurrence != occ
	result := "ok"
	switch {
	case stale:
		result = "discarded"
	case err != nil:
		result = "error"
		s.inFlight = false
		s.lastError = model.NewSubmissionFailedError(err).Message
	default:
		s.inFlight = false
		s.scoreSubmitted = true
	}
	s.mu.Unlock()

	s.deps.Metrics.ScoreSubmission(result)
	if err != nil {
		s.log.Error("score submission failed",
			slog.String("reason", string(sub.Reason)),
			slog.String("error", err.Error()),
		)
	} else {
		s.log.Info("score submitted",
			slog.String("reason", string(sub.Reason)),
			slog.Int("score", sub.Score),
			slog.String("result", result),
		)
	}

	if !terminated {
		s.refreshLeaderboard()
	}
}

// Logout はセッションを終了する。タイマーを即座に止め、進行中の処理結果は以後反映しない。
func (s *Session) Logout() {
	s.mu.Lock()
	if s.phase == PhaseTerminated {
		s.mu.Unlock()
		return
	}
	from := s.phase
	s.stopTicker()
	s.phase = PhaseTerminated
	s.epoch++
	s.offer = offerState{}
	s.offerToken++
	s.board.loading = false
	s.mu.Unlock()

	s.cancel()
	s.log.Info("game session terminated", slog.String("from_phase", string(from)))
}

// SetDisplayName はプレイヤーが明示的に名前を変えたときにIdentityを更新する。
func (s *Session) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if name = strings.TrimSpace(name); name != "" {
		s.identity.DisplayName = name
	}
}

// Identity はセッションが保持するIdentityを返す。
func (s *Session) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Phase は現在の状態を返す。
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Layout は現在のラウンドの盤面を返す。
func (s *Session) Layout() engine.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Wait は進行中のスコア保存とリーダーボード取得の完了を待つ。
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.lastActivity = s.deps.Clock.Now()
}

// startTicker はmuを保持した状態で呼ぶ。世代番号で古いタイマーのtickを無視する。
func (s *Session) startTicker() {
	s.tickerGen++
	gen := s.tickerGen
	stop := make(chan struct{})
	s.tickStop = stop
	ticker := s.deps.Clock.NewTicker(s.cfg.TickInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				s.tickFrom(gen)
			case <-stop:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Session) stopTicker() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

func (s *Session) tickFrom(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.tickerGen || s.tickStop == nil || s.phase != PhaseActive {
		return
	}
	s.step(true)
}
