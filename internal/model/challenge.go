package model

// Challenge はセカンドチャンス用パズルの問題と正解。
// 正解はクライアントに開示しない。
type Challenge struct {
	PromptAssetRef string
	CorrectAnswer  int
}

// DefaultCandidateAnswers はパズルの回答候補（1〜6）。
var DefaultCandidateAnswers = []int{1, 2, 3, 4, 5, 6}
