package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sixtyk/internal/middleware"
)

// HealthChecker はDB疎通確認に使う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// GameRegistry はハンドラーが使うゲームセッションの登録簿。
type GameRegistry interface {
	SessionResolver
	SessionLifecycle
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusObserver    middleware.StatusObserver

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ゲーム
	Registry         GameRegistry
	NameChanger      DisplayNameChanger
	ScoreHistory     ScoreHistory
	LeaderboardLimit int

	// アカウント
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → (API) Session → RateLimit → CSRF
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))

	authHandler := NewAuthHandler(deps.AuthService, deps.Registry, deps.AuthConfig)
	gameHandler := NewGameHandler(deps.Registry, deps.NameChanger, deps.ScoreHistory, deps.AuthConfig, deps.LeaderboardLimit)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.SignUp)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/api/game", func(r chi.Router) {
			r.Get("/", gameHandler.State)
			r.Post("/restart", gameHandler.Restart)
			r.Post("/report", gameHandler.Report)
			r.Put("/player-name", gameHandler.ChangePlayerName)

			r.Route("/second-chance", func(r chi.Router) {
				r.Post("/", gameHandler.RequestChallenge)
				r.Post("/answer", gameHandler.AnswerChallenge)
				r.Post("/dismiss", gameHandler.DismissOffer)
			})
		})

		r.Get("/api/leaderboard", gameHandler.Leaderboard)
		r.Get("/api/scores/me", gameHandler.MyScores)
		r.Delete("/api/account", userHandler.Withdraw)
	})

	return r
}

// healthHandler はDBに疎通できれば200を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
