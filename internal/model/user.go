// Package model はドメインモデルを定義する。
package model

import "time"

// User はゲームのプレイヤーアカウントを表す。
// Emailは正規化済みの識別子（ユーザー名のみの場合は "@game.local" を付与したもの）。
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity はIdentity Providerが解決したプレイヤーの身元を表す。
// ゲームセッションはこの値を開始時に1回だけ受け取り、プレイ中に外部ストレージを参照しない。
type Identity struct {
	UserID      string
	DisplayName string
}

// Present はユーザーIDが存在するかを返す。
// ユーザーIDがない場合はスコア送信が無効になる。
func (i Identity) Present() bool {
	return i.UserID != ""
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
