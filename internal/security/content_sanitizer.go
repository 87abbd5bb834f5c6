// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフィード記事の要約に含まれるHTMLを除去し、
// メール送信やAPI応答に安全なプレーンテキストへ変換する。
// bluemondayの厳格ポリシーにより、scriptやstyleの中身ごと全タグを除去する。
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのプレーンテキスト化機能のインターフェースを定義する。
// 記事の保存前に使用され、保存後のテキストにHTMLタグが残らないことを保証する。
type ContentSanitizerService interface {
	// CleanText はHTMLを除去したプレーンテキストを返す。
	// 全てのタグを除去し、scriptタグとstyleタグはその中身ごと除去する。
	// 連続する空白（改行・タブを含む）は半角スペース1つに畳み込まれ、
	// 先頭と末尾の空白は除去される。
	// 閉じられていないタグなど不正なHTMLでもパニックせず、ベストエフォートで処理する。
	// 同一入力に対して常に同一出力を返し、出力を再度入力しても変化しない（冪等）。
	CleanText(raw string) string
}

// whitespaceRun は連続する空白文字（改行・タブを含む）にマッチする。
var whitespaceRun = regexp.MustCompile(`\s+`)

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフに処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// bluemondayのStrictPolicy（許可タグなし）を使用するため、
// 全てのタグが除去され、scriptとstyleは中身ごと除去される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// CleanText はHTMLを除去したプレーンテキストを返す。
func (s *contentSanitizer) CleanText(raw string) string {
	if raw == "" {
		return ""
	}

	// タグ除去で前後の単語が連結しないよう、タグ開始の直前に空白を挿入してから
	// ポリシーを適用する。挿入した空白は最後の畳み込みで1つにまとめられる。
	spaced := strings.ReplaceAll(raw, "<", " <")
	text := s.policy.Sanitize(spaced)

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
