// Package user はプレイヤーアカウントの管理を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/hitoshi/sixtyk/internal/repository"
)

// LiveSessionCloser は進行中のゲームセッションを終了させる。
type LiveSessionCloser interface {
	CloseUser(userID string) int
}

// Service はアカウント管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	live        LiveSessionCloser
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	live LiveSessionCloser,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		live:        live,
	}
}

// Withdraw はプレイヤーの退会処理を実行する。
// 進行中のゲームセッションを終了してから、ログインセッションとユーザーを削除する。
// スコアはscoresテーブルのCASCADEで削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if s.live != nil {
		if n := s.live.CloseUser(userID); n > 0 {
			slog.Info("進行中のゲームを終了しました",
				slog.String("user_id", userID),
				slog.Int("sessions", n),
			)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
