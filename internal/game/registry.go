package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/jonboulle/clockwork"
)

// IdentityProvider はRegistryが利用する認証サービス。
type IdentityProvider interface {
	GetCurrentIdentity(ctx context.Context, sessionToken string) (model.Identity, bool, error)
	SignOut(ctx context.Context, sessionToken string) error
}

// Factory はIdentityからSessionを生成する。
type Factory func(identity model.Identity) *Session

// Registry は認証セッショントークンごとに1つのゲームセッションを保持する。
type Registry struct {
	idp     IdentityProvider
	factory Factory
	clock   clockwork.Clock
	metrics Recorder
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry はRegistryを生成する。
func NewRegistry(idp IdentityProvider, factory Factory, clock clockwork.Clock, metrics Recorder, logger *slog.Logger) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		idp:      idp,
		factory:  factory,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open はIdentity ProviderからIdentityを1回だけ取得し、新しいセッションを開始する。
// 同じトークンのセッションが既にあれば終了させて置き換える。
func (r *Registry) Open(ctx context.Context, token string) (*Session, error) {
	identity, ok, err := r.idp.GetCurrentIdentity(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if !ok {
		return nil, model.NewUnauthenticatedError()
	}
	return r.OpenWithIdentity(token, identity), nil
}

// OpenWithIdentity は解決済みのIdentityでセッションを開始する。ログイン直後に使う。
func (r *Registry) OpenWithIdentity(token string, identity model.Identity) *Session {
	session := r.factory(identity)
	session.Start()

	r.mu.Lock()
	prev := r.sessions[token]
	r.sessions[token] = session
	n := len(r.sessions)
	r.mu.Unlock()

	if prev != nil {
		prev.Logout()
	}
	r.metrics.LiveSessions(n)
	return session
}

// Get はトークンに対応する終了していないセッションを返す。
func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok || s.Phase() == PhaseTerminated {
		return nil, false
	}
	return s, true
}

// GetOrOpen は既存のセッションを返し、なければ開始する。
// 同じトークンで同時に呼ばれても開始するのは1つだけで、全員が同じセッションを受け取る。
func (r *Registry) GetOrOpen(ctx context.Context, token string) (*Session, error) {
	if s, ok := r.Get(token); ok {
		return s, nil
	}
	identity, ok, err := r.idp.GetCurrentIdentity(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if !ok {
		return nil, model.NewUnauthenticatedError()
	}

	r.mu.Lock()
	if s, ok := r.sessions[token]; ok && s.Phase() != PhaseTerminated {
		r.mu.Unlock()
		return s, nil
	}
	// Startはr.muを取らないため、ロックを保持したまま開始して他の呼び出しに未開始の状態を見せない
	session := r.factory(identity)
	session.Start()
	prev := r.sessions[token]
	r.sessions[token] = session
	n := len(r.sessions)
	r.mu.Unlock()

	if prev != nil {
		prev.Logout()
	}
	r.metrics.LiveSessions(n)
	return session, nil
}

// Close はログアウトを行う。ゲームセッションを終了してから認証セッションを破棄する。
func (r *Registry) Close(ctx context.Context, token string) error {
	r.mu.Lock()
	s := r.sessions[token]
	delete(r.sessions, token)
	n := len(r.sessions)
	r.mu.Unlock()

	if s != nil {
		s.Logout()
	}
	r.metrics.LiveSessions(n)

	if err := r.idp.SignOut(ctx, token); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// CloseUser は指定ユーザーのゲームセッションをすべて終了し、終了した数を返す。
func (r *Registry) CloseUser(userID string) int {
	var closed []*Session
	r.mu.Lock()
	for token, s := range r.sessions {
		if s.Identity().UserID == userID {
			closed = append(closed, s)
			delete(r.sessions, token)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range closed {
		s.Logout()
	}
	r.metrics.LiveSessions(n)
	return len(closed)
}

// Sweep は終了済みのセッションと、maxIdle以上操作のないセッションを取り除く。
// 認証セッションは残すため、再訪時には新しいゲームが始まる。
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := r.clock.Now()
	var removed []*Session
	r.mu.Lock()
	for token, s := range r.sessions {
		if s.Phase() == PhaseTerminated || now.Sub(s.idleSince()) > maxIdle {
			removed = append(removed, s)
			delete(r.sessions, token)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range removed {
		s.Logout()
	}
	r.metrics.LiveSessions(n)
	if len(removed) > 0 {
		r.logger.Info("idle game sessions swept", slog.Int("removed", len(removed)), slog.Int("live", n))
	}
	return len(removed)
}

// Len は保持しているセッション数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown はすべてのセッションを終了し、進行中のスコア保存を待つ。
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for token, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, token)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Logout()
	}
	for _, s := range all {
		s.Wait()
	}
	r.metrics.LiveSessions(0)
}
