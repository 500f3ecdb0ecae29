package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は外部APIから取得した表示文字列のサニタイズ機能の
// インターフェースを定義する。走者名・カテゴリ名・レベル名は外部入力であり、
// 通知メッセージに埋め込む前にマークアップを除去する。
type NameSanitizerService interface {
	// Sanitize は表示文字列からHTMLタグを全て除去し、前後の空白を取り除いて返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicy（タグを一切許可しない）を保持し、
// スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// 表示名はプレーンテキストであるべきなので、許可タグは存在しない。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示文字列からHTMLタグを除去する。
func (s *nameSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
