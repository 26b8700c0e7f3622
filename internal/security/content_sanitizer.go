// Package security はアプリケーションのセキュリティ機能を提供する。
//
// LabelSanitizer は計測値に付与される自由入力ラベル（体重のdayなど）から
// HTMLを取り除き、フロントエンドでそのまま表示しても安全な文字列にする。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxLabelLength はラベルの最大文字数（rune単位）。
const MaxLabelLength = 64

// LabelSanitizer はラベル文字列のサニタイズ機能のインターフェース。
type LabelSanitizer interface {
	// Sanitize はHTMLタグを除去し、空白を正規化してMaxLabelLength文字に切り詰める。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// labelSanitizer はLabelSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type labelSanitizer struct {
	policy   *bluemonday.Policy
	stripper *strings.Replacer
}

// NewLabelSanitizer はLabelSanitizerの新しいインスタンスを生成する。
// すべてのタグを許可しないStrictPolicyを使う。
func NewLabelSanitizer() LabelSanitizer {
	return &labelSanitizer{
		policy:   bluemonday.StrictPolicy(),
		stripper: strings.NewReplacer("<", "", ">", ""),
	}
}

// Sanitize はラベルをサニタイズする。
func (s *labelSanitizer) Sanitize(raw string) string {
	// StrictPolicyは&などをエスケープするため、平文に戻してから山括弧を除く
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = s.stripper.Replace(text)
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) > MaxLabelLength {
		text = string([]rune(text)[:MaxLabelLength])
	}
	return text
}
