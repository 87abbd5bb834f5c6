// Package model はドメインモデルを定義する。
package model

import "time"

// Feed は学術誌のRSS/Atomフィードを表す。
// 全ユーザーで共有されるグローバルなレコードであり、
// 作成後は管理者の明示的な操作以外では変更されない。
type Feed struct {
	ID        string
	Publisher string
	Journal   string
	URL       string
	CreatedAt time.Time
}

// ParsedEntry はフィードパーサーから取得した1件のエントリを表す。
// summaryは未サニタイズのHTMLを含む可能性がある。
type ParsedEntry struct {
	Title   string
	Link    string
	Summary string
}

// IsComplete はマッチングに必要なフィールドが全て揃っているかを返す。
// いずれかが欠落したエントリは不正形式としてスキップされる。
func (e ParsedEntry) IsComplete() bool {
	return e.Title != "" && e.Link != "" && e.Summary != ""
}

// FeedResult は1回のパイプライン実行における1フィードの取得結果を表す。
// 成功時はEntriesを保持し、失敗時はErrに失敗理由を保持する。
// 失敗は致命的エラーとして伝播せず、該当フィードのみゼロ件として扱われる。
type FeedResult struct {
	FeedID  string
	Entries []ParsedEntry
	Err     error
}

// OK は取得が成功したかを返す。
func (r FeedResult) OK() bool {
	return r.Err == nil
}
