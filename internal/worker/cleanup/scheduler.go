package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler は登録されたジョブを一定間隔で並列に実行する。
type Scheduler struct {
	jobs   []Job
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewScheduler はSchedulerを生成する。clockがnilなら実時間を使う。
func NewScheduler(clock clockwork.Clock, logger *slog.Logger, jobs ...Job) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{jobs: jobs, clock: clock, logger: logger}
}

// Start は起動直後に1回実行し、以降interval毎に実行する。
// コンテキストがキャンセルされるまで戻らない。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("job_count", len(s.jobs)),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.Chan():
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全ジョブを1回ずつ実行し、すべて終わるまで待つ。
// ジョブの失敗はログに記録し、他のジョブは続行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			if err := j.Run(ctx); err != nil {
				s.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("job", j.Name()),
					slog.String("error", err.Error()),
				)
			}
		}(job)
	}
	wg.Wait()
}
