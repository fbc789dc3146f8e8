// Package score はスコアの保存とリーダーボード取得を提供する。
package score

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/hitoshi/sixtyk/internal/repository"
)

// Service はScore Storeクライアントとしての振る舞いを提供する。
type Service struct {
	repo   repository.ScoreRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ScoreRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// SubmitScore はスコアを1件保存する。
// 入力不備はvalidationカテゴリ、保存失敗はsubmissionカテゴリのエラーを返す。
func (s *Service) SubmitScore(ctx context.Context, sub model.ScoreSubmission) error {
	if sub.UserID == "" {
		return model.NewValidationError("user_id", "必須です")
	}
	if sub.Score < 0 {
		return model.NewValidationError("score", "0以上である必要があります")
	}
	if !sub.Reason.Valid() {
		return model.NewValidationError("reason", fmt.Sprintf("未定義の終了理由です: %q", sub.Reason))
	}

	record := &model.ScoreRecord{
		ID:         uuid.New().String(),
		UserID:     sub.UserID,
		PlayerName: sub.PlayerDisplayName,
		Score:      sub.Score,
		Reason:     sub.Reason,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return model.NewSubmissionFailedError(err)
	}

	s.logger.Info("score saved",
		slog.String("user_id", sub.UserID),
		slog.Int("score", sub.Score),
		slog.String("reason", string(sub.Reason)),
	)
	return nil
}

// FetchTopScores はスコア降順で上位limit件を返す。
// プレイヤー名が欠けている行は "Unknown" で補う。
func (s *Service) FetchTopScores(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, model.NewValidationError("limit", "1以上である必要があります")
	}
	records, err := s.repo.ListTop(ctx, limit)
	if err != nil {
		return nil, model.NewLeaderboardFetchError(err)
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return toEntries(records), nil
}

// FetchMyScores はプレイヤー自身のスコア履歴を新しい順に返す。
func (s *Service) FetchMyScores(ctx context.Context, userID string) ([]model.LeaderboardEntry, error) {
	if userID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	records, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewLeaderboardFetchError(err)
	}
	return toEntries(records), nil
}

func toEntries(records []*model.ScoreRecord) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(records))
	for _, r := range records {
		name := r.PlayerName
		if name == "" {
			name = model.UnknownPlayerName
		}
		entries = append(entries, model.LeaderboardEntry{
			Score:             r.Score,
			PlayerDisplayName: name,
			SubmittedAt:       r.CreatedAt,
		})
	}
	return entries
}
