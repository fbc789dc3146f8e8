// Package cleanup は期限切れデータを定期的に掃除するジョブを提供する。
// 期限切れのログインセッション行の削除と、放置されたゲームセッションの回収を含む。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Job は定期実行されるメンテナンス処理。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ExpiredSessionJob はexpires_atを過ぎたログインセッション行を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
type ExpiredSessionJob struct {
	db     Executor
	logger *slog.Logger
}

// NewExpiredSessionJob は新しいExpiredSessionJobを生成する。
func NewExpiredSessionJob(db Executor, logger *slog.Logger) *ExpiredSessionJob {
	return &ExpiredSessionJob{db: db, logger: logger}
}

// Name はジョブ名を返す。
func (j *ExpiredSessionJob) Name() string { return "expired_sessions" }

// Run は期限切れセッションを削除する。
func (j *ExpiredSessionJob) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("期限切れセッションを削除しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// SessionSweeper は放置されたゲームセッションを回収する。game.Registryが満たす。
type SessionSweeper interface {
	Sweep(maxIdle time.Duration) int
}

// IdleGameJob は操作のないままmaxIdleを過ぎたゲームセッションと終了済みセッションを回収する。
type IdleGameJob struct {
	sweeper SessionSweeper
	maxIdle time.Duration
	logger  *slog.Logger
}

// NewIdleGameJob は新しいIdleGameJobを生成する。
func NewIdleGameJob(sweeper SessionSweeper, maxIdle time.Duration, logger *slog.Logger) *IdleGameJob {
	return &IdleGameJob{sweeper: sweeper, maxIdle: maxIdle, logger: logger}
}

// Name はジョブ名を返す。
func (j *IdleGameJob) Name() string { return "idle_game_sessions" }

// Run は回収を1回実行する。
func (j *IdleGameJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.sweeper.Sweep(j.maxIdle); n > 0 {
		j.logger.Info("放置されたゲームセッションを回収しました",
			slog.Int("swept_count", n),
			slog.Duration("max_idle", j.maxIdle),
		)
	}
	return nil
}
