// Package app はサブコマンドごとの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sixtyk/internal/auth"
	"github.com/hitoshi/sixtyk/internal/config"
	"github.com/hitoshi/sixtyk/internal/database"
	"github.com/hitoshi/sixtyk/internal/game"
	"github.com/hitoshi/sixtyk/internal/handler"
	"github.com/hitoshi/sixtyk/internal/heart"
	"github.com/hitoshi/sixtyk/internal/logger"
	"github.com/hitoshi/sixtyk/internal/metrics"
	"github.com/hitoshi/sixtyk/internal/middleware"
	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/hitoshi/sixtyk/internal/repository"
	"github.com/hitoshi/sixtyk/internal/score"
	"github.com/hitoshi/sixtyk/internal/security"
	"github.com/hitoshi/sixtyk/internal/user"
	"github.com/hitoshi/sixtyk/internal/worker/cleanup"
)

var _ game.Recorder = (*metrics.Collector)(nil)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		PrintUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// GameConfig は環境設定からゲーム定数を組み立てる。
func GameConfig(cfg *config.Config) (game.Config, error) {
	policy, err := game.ParsePolicy(cfg.SecondChancePolicy)
	if err != nil {
		return game.Config{}, err
	}
	gc := game.DefaultConfig()
	gc.InitialTime = cfg.GameDuration
	gc.Bonus = cfg.SecondChanceBonus
	gc.WinThreshold = cfg.WinThreshold
	gc.LeaderboardLimit = cfg.LeaderboardLimit
	gc.Policy = policy
	return gc, nil
}

// NewSessionFactory はログインごとに新しいルールエンジンを持つゲームセッションを生成する関数を返す。
func NewSessionFactory(gc game.Config, scores game.ScoreStore, puzzles game.PuzzleSource, clock clockwork.Clock, recorder game.Recorder, log *slog.Logger) game.Factory {
	return func(identity model.Identity) *game.Session {
		return game.NewSession(identity, gc, game.Deps{
			Scores:  scores,
			Puzzles: puzzles,
			Clock:   clock,
			Logger:  log,
			Metrics: recorder,
		})
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとライブセッションを終了してグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	gc, err := GameConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid game config: %w", err)
	}

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.ServePool)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	scoreRepo := repository.NewPostgresScoreRepo(db)

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 4. ドメインサービス
	guard := security.NewSSRFGuard()
	authService := auth.NewService(userRepo, sessionRepo, security.NewNameSanitizer(), auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	}, slog.Default())
	scoreService := score.NewService(scoreRepo, slog.Default())
	puzzles := heart.NewClient(guard.NewSafeClient(cfg.PuzzleTimeout), cfg.PuzzleEndpoint, guard, slog.Default())

	// 5. ゲームセッション
	clock := clockwork.NewRealClock()
	registry := game.NewRegistry(
		authService,
		NewSessionFactory(gc, scoreService, puzzles, clock, collector, slog.Default()),
		clock, collector, slog.Default(),
	)
	defer registry.Shutdown()

	userService := user.NewService(userRepo, sessionRepo, registry)

	// 6. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer rateLimiter.Stop()

	cookies := handler.AuthHandlerConfig{
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
	}
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain},
		RateLimiter:       rateLimiter,
		StatusObserver:    collector,
		HealthChecker:     db,
		MetricsHandler:    metrics.Handler(reg),
		AuthService:       authService,
		AuthConfig:        cookies,
		Registry:          registry,
		NameChanger:       authService,
		ScoreHistory:      scoreService,
		LeaderboardLimit:  cfg.LeaderboardLimit,
		UserService:       userService,
	})

	// 7. 放置セッションの回収
	sweeper := cleanup.NewScheduler(clock, slog.Default(),
		cleanup.NewIdleGameJob(registry, cfg.SessionIdleTimeout, slog.Default()),
	)
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweeper.Start(sweepCtx, cfg.CleanupInterval)

	// 8. HTTPサーバー
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れログインセッションの削除をCLEANUP_INTERVAL毎に実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.WorkerPool)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	scheduler := cleanup.NewScheduler(nil, slog.Default(),
		cleanup.NewExpiredSessionJob(db, slog.Default()),
	)

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))

	// ブロッキング
	scheduler.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
