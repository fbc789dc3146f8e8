package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/jonboulle/clockwork"
)

type mockIdentityProvider struct {
	mu         sync.Mutex
	identities map[string]model.Identity
	lookupErr  error
	lookups    int
	signedOut  []string
	signOutErr error
	delay      time.Duration
}

func (m *mockIdentityProvider) GetCurrentIdentity(_ context.Context, token string) (model.Identity, bool, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return model.Identity{}, false, m.lookupErr
	}
	id, ok := m.identities[token]
	return id, ok, nil
}

func (m *mockIdentityProvider) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedOut = append(m.signedOut, token)
	return m.signOutErr
}

func newTestRegistry(t *testing.T) (*Registry, *mockIdentityProvider, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	idp := &mockIdentityProvider{identities: map[string]model.Identity{
		"tok-alice":  alice,
		"tok-bob":    {UserID: "user-bob", DisplayName: "Bob"},
		"tok-alice2": alice,
	}}
	store := &fakeStore{}
	factory := func(identity model.Identity) *Session {
		return NewSession(identity, DefaultConfig(), Deps{
			Scores:  store,
			Puzzles: &fakePuzzles{},
			Clock:   clock,
		})
	}
	r := NewRegistry(idp, factory, clock, nil, nil)
	t.Cleanup(r.Shutdown)
	return r, idp, clock
}

func TestRegistry_GetOrOpen_ConcurrentCallsShareOneSession(t *testing.T) {
	r, idp, _ := newTestRegistry(t)
	idp.delay = 20 * time.Millisecond

	const callers = 4
	got := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.GetOrOpen(context.Background(), "tok-alice")
			if err != nil {
				t.Errorf("GetOrOpen() error = %v", err)
				return
			}
			got[i] = s
		}()
	}
	wg.Wait()

	for i, s := range got {
		if s == nil {
			t.Fatalf("caller %d got no session", i)
		}
		if s != got[0] {
			t.Fatalf("caller %d got a different session", i)
		}
		if s.Phase() != PhaseActive {
			t.Errorf("caller %d phase = %s, want %s", i, s.Phase(), PhaseActive)
		}
	}
	if n := r.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestRegistry_OpenHydratesIdentityOnce(t *testing.T) {
	r, idp, _ := newTestRegistry(t)

	s, err := r.GetOrOpen(context.Background(), "tok-alice")
	if err != nil {
		t.Fatalf("GetOrOpen() error = %v", err)
	}
	if s.Identity() != alice {
		t.Errorf("Identity = %+v, want %+v", s.Identity(), alice)
	}
	again, err := r.GetOrOpen(context.Background(), "tok-alice")
	if err != nil || again != s {
		t.Fatalf("second GetOrOpen should return the live session")
	}
	if idp.lookups != 1 {
		t.Errorf("identity lookups = %d, want 1", idp.lookups)
	}
}

func TestRegistry_OpenUnauthenticated(t *testing.T) {
	r, idp, _ := newTestRegistry(t)

	_, err := r.Open(context.Background(), "tok-unknown")
	if !model.IsCategory(err, model.CategoryAuth) {
		t.Errorf("error = %v, want auth error", err)
	}

	idp.lookupErr = errors.New("db down")
	if _, err := r.Open(context.Background(), "tok-alice"); err == nil || model.IsCategory(err, model.CategoryAuth) {
		t.Errorf("lookup failure error = %v", err)
	}
}

func TestRegistry_ReopenReplacesPreviousSession(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	first, _ := r.Open(context.Background(), "tok-alice")
	second, _ := r.Open(context.Background(), "tok-alice")

	if first == second {
		t.Fatal("expected a fresh session")
	}
	if first.Phase() != PhaseTerminated {
		t.Errorf("replaced session phase = %s, want Terminated", first.Phase())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_CloseTerminatesAndSignsOut(t *testing.T) {
	r, idp, _ := newTestRegistry(t)
	s, _ := r.Open(context.Background(), "tok-alice")

	if err := r.Close(context.Background(), "tok-alice"); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Phase != PhaseTerminated || snap.TimerRunning {
		t.Errorf("snapshot after close = %+v", snap)
	}
	if len(idp.signedOut) != 1 || idp.signedOut[0] != "tok-alice" {
		t.Errorf("signed out = %v", idp.signedOut)
	}
	if _, ok := r.Get("tok-alice"); ok {
		t.Error("closed session should not be returned")
	}

	// ゲームセッションがなくても認証セッションは破棄する
	if err := r.Close(context.Background(), "tok-bob"); err != nil {
		t.Fatalf("Close() without game error = %v", err)
	}
	if len(idp.signedOut) != 2 {
		t.Errorf("signed out = %v", idp.signedOut)
	}
}

func TestRegistry_CloseUser(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	a1, _ := r.Open(context.Background(), "tok-alice")
	a2, _ := r.Open(context.Background(), "tok-alice2")
	b, _ := r.Open(context.Background(), "tok-bob")

	if n := r.CloseUser("user-alice"); n != 2 {
		t.Errorf("CloseUser() = %d, want 2", n)
	}
	if a1.Phase() != PhaseTerminated || a2.Phase() != PhaseTerminated {
		t.Error("alice's sessions should be terminated")
	}
	if b.Phase() != PhaseActive {
		t.Error("bob's session should be untouched")
	}
}

func TestRegistry_SweepRemovesIdleAndTerminated(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	idle, _ := r.Open(context.Background(), "tok-alice")
	clock.Advance(20 * time.Minute)
	busy, _ := r.Open(context.Background(), "tok-bob")

	if n := r.Sweep(10 * time.Minute); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if idle.Phase() != PhaseTerminated {
		t.Error("idle session should be terminated")
	}
	if _, ok := r.Get("tok-bob"); !ok {
		t.Error("recent session should survive")
	}

	busy.Logout()
	if n := r.Sweep(time.Hour); n != 1 {
		t.Errorf("Sweep() terminated = %d, want 1", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
