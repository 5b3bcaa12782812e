// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はレコードの自由記述フィールドからマークアップを取り除き、
// プレーンテキストとして保存できる形にする。
// SSRFGuardService はIdPとの通信とプロフィール画像URLの検証に使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェース。
// レコードのフィールド更新時に使用される。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// script, styleなどの要素は内容ごと除去される。
	// "&"や引用符などの文字はエスケープせずそのまま残す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はタグ除去を繰り返す上限。
// "<<b>script>"のように除去後にタグが組み上がる入力に対して繰り返す。
const maxSanitizePasses = 4

// Sanitize はタグを除去したプレーンテキストを返す。
// 入力中の文字参照（"&lt;"など）は文字列のまま残し、マークアップとして復元しない。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" || !strings.ContainsAny(raw, "<>&") {
		return raw
	}

	out := s.strip(raw)
	for i := 0; strings.Contains(out, "<"); i++ {
		if i == maxSanitizePasses {
			return strings.ReplaceAll(out, "<", "")
		}
		next := s.strip(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// strip はタグを1回除去する。"&"を先にエスケープするため、
// bluemondayが戻すのは入力にあった文字そのものだけになる。
func (s *textSanitizer) strip(text string) string {
	escaped := strings.ReplaceAll(text, "&", "&amp;")
	return html.UnescapeString(s.policy.Sanitize(escaped))
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
