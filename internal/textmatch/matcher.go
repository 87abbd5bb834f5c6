// Package textmatch はキーワードとフリーテキストの単語単位マッチングを提供する。
package textmatch

import (
	"regexp"
	"sort"
	"strings"
)

// Matcher はキーワード集合をテキストフィールドに対してマッチングする。
// 全キーワードを1つの選択肢パターンにまとめ、単語境界付き・
// 大文字小文字無視で各フィールドに適用する。
type Matcher struct{}

// NewMatcher はMatcherの新しいインスタンスを生成する。
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match はfieldsの各値に対してkeywordsをマッチングし、
// いずれかのフィールドでマッチしたキーワードを元の表記のまま重複なく返す。
// 結果は決定的になるようソートされる。
//
// 単語境界セマンティクス: キーワード "ion" は "the ion beam" にはマッチするが
// "ionic" にはマッチしない。キーワードが空の場合は空のスライスを返す。
func (m *Matcher) Match(keywords []string, fields map[string]string) []string {
	if len(keywords) == 0 {
		return nil
	}

	// 小文字化したマッチ結果から元の表記を引けるようにしておく
	surface := make(map[string]string, len(keywords))
	escaped := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if _, ok := surface[lower]; ok {
			continue
		}
		surface[lower] = kw
		escaped = append(escaped, regexp.QuoteMeta(lower))
	}
	if len(escaped) == 0 {
		return nil
	}

	pattern, err := regexp.Compile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
	if err != nil {
		// QuoteMeta済みの選択肢はコンパイルに失敗しない
		return nil
	}

	found := make(map[string]struct{})
	for _, text := range fields {
		for _, match := range pattern.FindAllString(text, -1) {
			found[strings.ToLower(match)] = struct{}{}
		}
	}

	if len(found) == 0 {
		return nil
	}

	matched := make([]string, 0, len(found))
	for lower := range found {
		matched = append(matched, surface[lower])
	}
	sort.Strings(matched)
	return matched
}
