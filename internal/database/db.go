package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// connectTimeout は起動時の疎通確認の上限。
const connectTimeout = 10 * time.Second

// PoolConfig はコネクションプールの上限。
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

var (
	// ServePool はAPIサーバー用。スコア保存とリーダーボード取得は短いクエリなので小さめに保つ。
	ServePool = PoolConfig{MaxOpen: 20, MaxIdle: 5, MaxLifetime: 30 * time.Minute}
	// WorkerPool は定期削除だけを行うワーカー用。
	WorkerPool = PoolConfig{MaxOpen: 2, MaxIdle: 1, MaxLifetime: 30 * time.Minute}
)

// Open はPostgreSQL接続を開く。sql.Openは接続を試行しないため疎通確認はConnectで行う。
func Open(databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	return db, nil
}

// Connect は接続を開いてPingまで行う。失敗時は接続を閉じてから返す。
func Connect(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := Open(databaseURL, pool)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
