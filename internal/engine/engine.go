// Package engine はカードマッチングのルールエンジンとの境界を定義する。
// 盤面の操作と得点計算はブラウザ側で行い、サーバーは報告されたscoreとgameOverのみを保持する。
package engine

import (
	"sync"

	"github.com/hitoshi/sixtyk/internal/model"
)

// Engine はオーケストレーターから見たルールエンジン。
type Engine interface {
	Score() int
	GameOver() bool
	Reset(layout Layout)
}

// Reported はクライアントから報告された値を保持するEngine実装。
// scoreは単調非減少で、gameOverは一度trueになるとResetまで維持される。
type Reported struct {
	mu       sync.Mutex
	score    int
	gameOver bool
	layout   Layout
}

// NewReported は空のReportedを生成する。
func NewReported() *Reported {
	return &Reported{}
}

// Report はクライアントからの報告を取り込む。
// 現在値より小さいscoreは無視する。負のscoreはvalidationエラー。
func (r *Reported) Report(score int, gameOver bool) error {
	if score < 0 {
		return model.NewValidationError("score", "0以上である必要があります")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if score > r.score {
		r.score = score
	}
	if gameOver {
		r.gameOver = true
	}
	return nil
}

func (r *Reported) Score() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.score
}

func (r *Reported) GameOver() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameOver
}

// Reset は新しい盤面で状態を初期化する。
func (r *Reported) Reset(layout Layout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.score = 0
	r.gameOver = false
	r.layout = layout
}

// Layout は直近のResetで配られた盤面を返す。
func (r *Reported) Layout() Layout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layout
}

var _ Engine = (*Reported)(nil)
