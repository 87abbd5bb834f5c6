// Package model はドメインモデルを定義する。
package model

import "time"

// Article はキーワードマッチで取り込まれた記事の正規レコードを表す。
// タイトルで重複排除され、何人のユーザーにマッチしても1行のみ存在する。
// 作成後は不変であり、パイプライン自身が削除することはない。
type Article struct {
	ID      string
	FeedID  string
	Title   string
	Link    string
	Summary string // サニタイズ済みプレーンテキスト
	AddedAt time.Time
}

// UserArticle はユーザーごとの記事の可視性と状態を表す。
// 共有Articleに対する実質的な「受信箱エントリ」であり、
// (user_id, article_id) は一意。
type UserArticle struct {
	ID         string
	UserID     string
	ArticleID  string
	IsRead     bool
	IsArchived bool
	IsDeleted  bool
	AddedAt    time.Time
	ReadAt     *time.Time
	ArchivedAt *time.Time
	DeletedAt  *time.Time
	Keywords   []Keyword // マッチしたキーワードの累積集合
}

// DigestArticle はダイジェストメールに載せる1記事分の表示データ。
// Articleとフィード情報、マッチしたキーワード名を結合したもの。
type DigestArticle struct {
	Title     string
	Link      string
	Summary   string
	Publisher string
	Journal   string
	Keywords  []string
	AddedAt   time.Time
}
