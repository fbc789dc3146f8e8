package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameLength は表示名の最大文字数。
const MaxDisplayNameLength = 32

// NameSanitizer はプレイヤー表示名からHTMLを取り除く。
// bluemondayのStrictPolicyで全タグを除去し、空白を1つにまとめて長さを制限する。
// リーダーボードで他のプレイヤーに表示されるため、保存前に必ず通す。
type NameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerを生成する。
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName は無害化した表示名を返す。空入力には空文字列を返す。
func (s *NameSanitizer) SanitizeName(name string) string {
	clean := s.policy.Sanitize(name)
	clean = strings.Join(strings.Fields(clean), " ")
	if utf8.RuneCountInString(clean) > MaxDisplayNameLength {
		clean = strings.TrimSpace(string([]rune(clean)[:MaxDisplayNameLength]))
	}
	return clean
}
