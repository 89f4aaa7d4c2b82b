// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は利用者名やセッション備考などの自由入力テキストを
// サニタイズし、格納データ経由のXSSからUIを保護する。
// これらのフィールドはプレーンテキストとして扱うため、
// bluemondayのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は自由入力テキストのサニタイズ機能のインターフェースを定義する。
// 利用者登録・編集およびセッション備考の保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力テキストから全てのHTMLタグを除去し、前後の空白を取り除く。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去し、テキストのみを通過させる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストから全てのHTMLタグを除去する。
func (s *textSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
