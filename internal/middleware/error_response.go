package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sixtyk/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: model.CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusForError はAPIErrorのカテゴリとコードからHTTPステータスを決める。
func StatusForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeDuplicateRegistration:
		return http.StatusConflict
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeOfferUnavailable, model.ErrCodeNoChallenge:
		return http.StatusConflict
	}
	switch apiErr.Category {
	case model.CategoryAuth:
		return http.StatusUnauthorized
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategorySession:
		return http.StatusGone
	case model.CategoryFetch, model.CategorySubmission:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError はerrを統一フォーマットで書き込む。APIError以外は500として扱い、詳細はログのみに残す。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		WriteInternalServerError(w)
		return
	}
	if apiErr.Err != nil {
		slog.Warn("request failed",
			slog.String("code", apiErr.Code),
			slog.String("error", apiErr.Err.Error()),
		)
	}
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}
