// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, submission, fetch, session, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因エラー（ログ用、レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategorySubmission = "submission"
	CategoryFetch      = "fetch"
	CategorySession    = "session"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeDuplicateRegistration = "DUPLICATE_REGISTRATION"
	ErrCodeUnauthenticated       = "UNAUTHENTICATED"
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeSubmissionFailed      = "SUBMISSION_FAILED"
	ErrCodeLeaderboardFetch      = "LEADERBOARD_FETCH_FAILED"
	ErrCodePuzzleFetch           = "PUZZLE_FETCH_FAILED"
	ErrCodeOfferUnavailable      = "SECOND_CHANCE_UNAVAILABLE"
	ErrCodeNoChallenge           = "NO_CHALLENGE"
	ErrCodeSessionTerminated     = "SESSION_TERMINATED"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
)

// IsCategory はerrがAPIErrorであり、指定カテゴリに属するかを返す。
func IsCategory(err error, category string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == category
	}
	return false
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: CategoryAuth,
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewDuplicateRegistrationError は登録済み識別子での再登録エラーを生成する。
func NewDuplicateRegistrationError(identifier string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateRegistration,
		Message:  fmt.Sprintf("このユーザーは既に登録されています: %s", identifier),
		Category: CategoryAuth,
		Action:   "ログイン画面からログインしてください。",
	}
}

// NewUnauthenticatedError は未ログインエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインしていません。",
		Category: CategoryAuth,
		Action:   "ログインし直してください。",
	}
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です (%s): %s", field, reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewSubmissionFailedError はスコア保存失敗エラーを生成する。
func NewSubmissionFailedError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionFailed,
		Message:  "スコアの保存に失敗しました。",
		Category: CategorySubmission,
		Action:   "スコアはこの画面に表示されています。リスタートまたはログアウトできます。",
		Err:      err,
	}
}

// NewLeaderboardFetchError はリーダーボード取得失敗エラーを生成する。
func NewLeaderboardFetchError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeLeaderboardFetch,
		Message:  "リーダーボードを読み込めませんでした。",
		Category: CategoryFetch,
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewPuzzleFetchError はパズル取得失敗エラーを生成する。
func NewPuzzleFetchError(err error) *APIError {
	return &APIError{
		Code:     ErrCodePuzzleFetch,
		Message:  "Heart Gameを読み込めませんでした。",
		Category: CategoryFetch,
		Action:   "もう一度お試しください。",
		Err:      err,
	}
}

// NewOfferUnavailableError はセカンドチャンスが利用できない場合のエラーを生成する。
func NewOfferUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeOfferUnavailable,
		Message:  "セカンドチャンスは利用できません。",
		Category: CategoryValidation,
		Action:   "新しいゲームを開始してください。",
	}
}

// NewNoChallengeError は回答対象のパズルがない場合のエラーを生成する。
func NewNoChallengeError() *APIError {
	return &APIError{
		Code:     ErrCodeNoChallenge,
		Message:  "回答できるパズルがありません。",
		Category: CategoryValidation,
		Action:   "先にHeart Gameを開始してください。",
	}
}

// NewSessionTerminatedError はログアウト済みセッションへの操作エラーを生成する。
func NewSessionTerminatedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionTerminated,
		Message:  "ログアウトしました。",
		Category: CategorySession,
		Action:   "再度ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryAuth,
		Action:   "ログインし直してください。",
	}
}
