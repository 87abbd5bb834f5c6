// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 認証・トークン発行は外部コラボレーターの責務であり、本モデルは
// パイプラインとダイジェスト送信が必要とする属性のみを保持する。
type User struct {
	ID                  string
	Username            string
	Email               string
	Active              bool
	SendFeedEmails      bool
	MaxArticlesPerEmail int
	LastRSSUpdate       *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Subscription はユーザーとフィードの購読関係を表す。
// (user_id, feed_id) は一意であり、どのフィードをそのユーザーの
// ために取得するかを決定する。
type Subscription struct {
	ID        string
	UserID    string
	FeedID    string
	CreatedAt time.Time
}

// Keyword はユーザーが定義するマッチ語を表す。
// active=false のキーワードは履歴を保持したままマッチングから除外される。
type Keyword struct {
	ID        string
	UserID    string
	Name      string
	Active    bool
	CreatedAt time.Time
}
