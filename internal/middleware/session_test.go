package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func validSessionRepo(userID string) *mockSessionRepository {
	return &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "valid-session-id" {
				return nil, nil
			}
			return &model.Session{
				ID:        id,
				UserID:    userID,
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUserIDAndToken(t *testing.T) {
	mw := NewSessionMiddleware(validSessionRepo("user-123"))

	var capturedUserID, capturedToken string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		capturedUserID, err = UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("UserIDFromContext: %v", err)
		}
		capturedToken, err = SessionTokenFromContext(r.Context())
		if err != nil {
			t.Errorf("SessionTokenFromContext: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/game", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if capturedToken != "valid-session-id" {
		t.Errorf("token = %q, want %q", capturedToken, "valid-session-id")
	}
}

func TestSessionMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		repo   *mockSessionRepository
	}{
		{name: "no cookie", repo: &mockSessionRepository{}},
		{name: "empty cookie", cookie: &http.Cookie{Name: SessionCookieName, Value: ""}, repo: &mockSessionRepository{}},
		{name: "expired or unknown", cookie: &http.Cookie{Name: SessionCookieName, Value: "stale"}, repo: validSessionRepo("user-1")},
		{
			name:   "repository error",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "valid-session-id"},
			repo: &mockSessionRepository{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return nil, errors.New("db down")
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionMiddleware(tt.repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/game", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthenticated {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
			}
		})
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	if _, err := SessionTokenFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestContextWithSession(t *testing.T) {
	ctx := ContextWithSession(context.Background(), "user-9", "token-9")

	userID, err := UserIDFromContext(ctx)
	if err != nil || userID != "user-9" {
		t.Errorf("UserIDFromContext = (%q, %v), want (user-9, nil)", userID, err)
	}
	token, err := SessionTokenFromContext(ctx)
	if err != nil || token != "token-9" {
		t.Errorf("SessionTokenFromContext = (%q, %v), want (token-9, nil)", token, err)
	}
}
