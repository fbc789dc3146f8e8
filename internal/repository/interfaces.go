// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/sixtyk/internal/model"
)

// ErrDuplicateEmail は同じ識別子のユーザーが既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済み識別子でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。識別子が重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateDisplayName はユーザーの表示名を更新する。
	UpdateDisplayName(ctx context.Context, id, displayName string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、scoresはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ScoreRepository はスコアの永続化インターフェース。
type ScoreRepository interface {
	// Insert はスコアを1件追加する。
	Insert(ctx context.Context, record *model.ScoreRecord) error

	// ListTop はスコア降順で上位limit件を返す。
	ListTop(ctx context.Context, limit int) ([]*model.ScoreRecord, error)

	// ListByUserID はユーザーのスコア履歴を記録日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.ScoreRecord, error)
}
