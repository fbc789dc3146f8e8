package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sixtyk/internal/model"
)

// PostgresScoreRepo はPostgreSQLを使用したスコアリポジトリ。
type PostgresScoreRepo struct {
	db *sql.DB
}

// NewPostgresScoreRepo はPostgresScoreRepoを生成する。
func NewPostgresScoreRepo(db *sql.DB) *PostgresScoreRepo {
	return &PostgresScoreRepo{db: db}
}

// Insert はスコアを1件追加する。
// player_nameが空の場合はNULLとして保存する。
func (r *PostgresScoreRepo) Insert(ctx context.Context, record *model.ScoreRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scores (id, user_id, player_name, score, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.UserID, nullIfEmpty(record.PlayerName), record.Score, string(record.Reason), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

// ListTop はスコア降順で上位limit件を返す。
// 同点の場合は先に記録されたスコアを上位とする。
func (r *PostgresScoreRepo) ListTop(ctx context.Context, limit int) ([]*model.ScoreRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(player_name, ''), score, reason, created_at
		 FROM scores
		 ORDER BY score DESC, created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list top scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// ListByUserID はユーザーのスコア履歴を記録日時の降順で返す。
func (r *PostgresScoreRepo) ListByUserID(ctx context.Context, userID string) ([]*model.ScoreRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(player_name, ''), score, reason, created_at
		 FROM scores
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

func scanScores(rows *sql.Rows) ([]*model.ScoreRecord, error) {
	var records []*model.ScoreRecord
	for rows.Next() {
		rec := &model.ScoreRecord{}
		var reason string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PlayerName, &rec.Score, &reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		rec.Reason = model.ScoreReason(reason)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return records, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ ScoreRepository = (*PostgresScoreRepo)(nil)
