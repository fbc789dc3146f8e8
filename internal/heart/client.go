// Package heart はセカンドチャンス用のHeart Gameパズル APIクライアントを提供する。
package heart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/hitoshi/sixtyk/internal/model"
)

// maxResponseBytes はレスポンスボディの読み取り上限。
const maxResponseBytes = 64 * 1024

// URLValidator は問題画像のURLを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// puzzleResponse はHeart Game APIのレスポンス。
type puzzleResponse struct {
	Question string `json:"question"`
	Solution *int   `json:"solution"`
}

// Client はHeart Game APIのクライアント。
type Client struct {
	httpClient *http.Client
	validator  URLValidator
	logger     *slog.Logger
	endpoint   string
	candidates []int
}

// NewClient はClientの新しいインスタンスを生成する。
// validatorがnilの場合、問題画像URLの検証は行わない。
func NewClient(httpClient *http.Client, endpoint string, validator URLValidator, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		validator:  validator,
		logger:     logger,
		endpoint:   endpoint,
		candidates: model.DefaultCandidateAnswers,
	}
}

// FetchChallenge は新しいパズルを1問取得する。
// 失敗はすべてfetchカテゴリのAPIErrorとして返す。
func (c *Client) FetchChallenge(ctx context.Context) (model.Challenge, error) {
	ch, err := c.fetch(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("Heart Gameの取得に失敗しました", slog.String("error", err.Error()))
		}
		return model.Challenge{}, model.NewPuzzleFetchError(err)
	}
	return ch, nil
}

func (c *Client) fetch(ctx context.Context) (model.Challenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return model.Challenge{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SixtyK/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Challenge{}, fmt.Errorf("パズルAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Challenge{}, fmt.Errorf("パズルAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.Challenge{}, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var pr puzzleResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return model.Challenge{}, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if pr.Question == "" {
		return model.Challenge{}, fmt.Errorf("問題画像のURLがありません")
	}
	if c.validator != nil {
		if err := c.validator.ValidateURL(pr.Question); err != nil {
			return model.Challenge{}, fmt.Errorf("問題画像のURLが不正です: %w", err)
		}
	}
	if pr.Solution == nil {
		return model.Challenge{}, fmt.Errorf("正解がありません")
	}
	if !slices.Contains(c.candidates, *pr.Solution) {
		return model.Challenge{}, fmt.Errorf("正解が回答候補外です: %d", *pr.Solution)
	}

	return model.Challenge{PromptAssetRef: pr.Question, CorrectAnswer: *pr.Solution}, nil
}
