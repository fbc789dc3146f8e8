package model

import "time"

// ScoreReason はスコアが記録された終了理由。
type ScoreReason string

const (
	// ReasonTimeout は制限時間切れによる終了。
	ReasonTimeout ScoreReason = "Timeout"
	// ReasonGameEnded はルールエンジンによるゲーム終了。
	ReasonGameEnded ScoreReason = "Game Ended"
)

// Valid は定義済みの終了理由かどうかを返す。
func (r ScoreReason) Valid() bool {
	return r == ReasonTimeout || r == ReasonGameEnded
}

// UnknownPlayerName はプレイヤー名が欠けているスコアの表示名。
const UnknownPlayerName = "Unknown"

// ScoreRecord はscoresテーブルの1行を表す。
type ScoreRecord struct {
	ID         string
	UserID     string
	PlayerName string
	Score      int
	Reason     ScoreReason
	CreatedAt  time.Time
}

// ScoreSubmission はスコア送信の入力。
type ScoreSubmission struct {
	UserID            string
	PlayerDisplayName string
	Score             int
	Reason            ScoreReason
}

// LeaderboardEntry はリーダーボードの表示用エントリ。
type LeaderboardEntry struct {
	Score             int       `json:"score"`
	PlayerDisplayName string    `json:"player_display_name"`
	SubmittedAt       time.Time `json:"submitted_at"`
}
