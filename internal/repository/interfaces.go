// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsernameOrEmail はユーザー名またはメールアドレスが一致する
	// ユーザーを取得する。見つからない場合はnilを返す。
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// ListActive はアクティブな全ユーザーを返す。
	ListActive(ctx context.Context) ([]*model.User, error)

	// ListDigestRecipients はダイジェストメールの送信対象ユーザーを返す。
	// active かつ send_feed_emails=true かつ未読・未アーカイブのリンクを
	// 1件以上持つユーザーが対象。
	ListDigestRecipients(ctx context.Context) ([]*model.User, error)

	// UpdateLastRSSUpdate はユーザーのlast_rss_updateを更新する。
	// refreshエンドポイントのクールダウン判定に使用される。
	UpdateLastRSSUpdate(ctx context.Context, userID string, t time.Time) error
}

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feed, error)

	// FindByURL はURLでフィードを検索する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, url string) (*model.Feed, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.Feed) error

	// ListSubscribed は1人以上のユーザーが購読している全フィードを返す。
	// 全ユーザーモードのパイプラインで、取得対象フィードの集合を決定する。
	ListSubscribed(ctx context.Context) ([]*model.Feed, error)

	// ListByUserID は指定ユーザーが購読しているフィードを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error)
}

// SubscriptionRepository は購読データの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByUserAndFeed はユーザーIDとフィードIDで購読を検索する。見つからない場合はnilを返す。
	FindByUserAndFeed(ctx context.Context, userID, feedID string) (*model.Subscription, error)

	// Create は購読を作成する。
	Create(ctx context.Context, subscription *model.Subscription) error

	// Delete はユーザーとフィードの購読関係を削除する。
	Delete(ctx context.Context, userID, feedID string) error

	// ListByUserID はユーザーの購読一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Subscription, error)
}

// KeywordRepository はキーワードデータの永続化インターフェース。
type KeywordRepository interface {
	// FindByID は指定IDのキーワードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Keyword, error)

	// FindByUserAndName はユーザーIDと名前でキーワードを検索する。見つからない場合はnilを返す。
	FindByUserAndName(ctx context.Context, userID, name string) (*model.Keyword, error)

	// ListByUserID はユーザーの全キーワードを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Keyword, error)

	// ListActiveByUserID はユーザーのアクティブなキーワードを返す。
	// マッチングの入力集合となる。
	ListActiveByUserID(ctx context.Context, userID string) ([]*model.Keyword, error)

	// Create はキーワードを作成する。
	Create(ctx context.Context, keyword *model.Keyword) error

	// SetActive はキーワードの有効/無効を切り替える。
	SetActive(ctx context.Context, id string, active bool) error

	// Delete は指定IDのキーワードを削除する。
	// user_article_keywordsの関連行はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindByTitle はタイトルで記事を検索する。見つからない場合はnilを返す。
	// タイトルが記事の重複排除キー。
	FindByTitle(ctx context.Context, title string) (*model.Article, error)

	// Create は新規記事を作成する。同一タイトルの行が既に存在する場合は
	// 一意制約違反を返す（IsUniqueViolationで判定可能）。
	Create(ctx context.Context, article *model.Article) error

	// FindOrCreate はタイトルで記事を検索し、存在しなければ作成して返す。
	// トランザクション内でも安全に使用できる。
	FindOrCreate(ctx context.Context, article *model.Article) (*model.Article, error)
}

// UserArticleRepository はユーザーごとの記事リンクの永続化インターフェース。
type UserArticleRepository interface {
	// FindByUserAndArticle はユーザーIDと記事IDでリンクを検索する。見つからない場合はnilを返す。
	FindByUserAndArticle(ctx context.Context, userID, articleID string) (*model.UserArticle, error)

	// Create はリンクを作成する。
	Create(ctx context.Context, link *model.UserArticle) error

	// AddKeywords はリンクのmatched_keywords集合にキーワードを追加する。
	// 既に関連付いているキーワードは無視される（冪等な和集合）。
	AddKeywords(ctx context.Context, linkID string, keywordIDs []string) error

	// SetRead は既読フラグを切り替える。read_atはfalse→true遷移時のみ設定され、
	// true→false遷移で解除される。
	SetRead(ctx context.Context, userID, articleID string, read bool) error

	// SetArchived はアーカイブフラグを切り替える。アーカイブは既読も兼ねる。
	SetArchived(ctx context.Context, userID, articleID string, archived bool) error

	// MarkDeleted はリンクを削除済みにする。既読・アーカイブも同時に立てる。
	// 物理削除は保持期間経過後にクリーンアップジョブが行う。
	MarkDeleted(ctx context.Context, userID, articleID string) error

	// ListUnreadDigest はユーザーの未読・未アーカイブのリンクを
	// ダイジェスト表示用データとしてadded_atの古い順に最大limit件返す。
	ListUnreadDigest(ctx context.Context, userID string, limit int) ([]model.DigestArticle, error)

	// DeleteExpired はis_deleted=trueかつdeleted_atがcutoffより古いリンクを
	// 物理削除し、削除件数を返す。冪等。
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOrphans はマッチキーワードが1件も残っていないリンクを削除し、
	// 削除件数を返す。キーワード削除カスケードの後始末に使用される。冪等。
	DeleteOrphans(ctx context.Context) (int64, error)
}
