package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Querier はSQL実行を抽象化するインターフェース。
// *sql.DB と *sql.Tx の両方が満たすため、同じリポジトリ実装を
// トランザクション内外で使い回せる。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store は全リポジトリを束ねた作業単位（unit of work）。
// パイプラインの各ステージは暗黙のセッション状態ではなく、
// 明示的に渡されたStoreを通じて永続化を行う。
type Store struct {
	Users         UserRepository
	Feeds         FeedRepository
	Subscriptions SubscriptionRepository
	Keywords      KeywordRepository
	Articles      ArticleRepository
	UserArticles  UserArticleRepository
}

// NewStore は指定Querier上で動作するStoreを生成する。
func NewStore(q Querier) *Store {
	return &Store{
		Users:         NewPostgresUserRepo(q),
		Feeds:         NewPostgresFeedRepo(q),
		Subscriptions: NewPostgresSubscriptionRepo(q),
		Keywords:      NewPostgresKeywordRepo(q),
		Articles:      NewPostgresArticleRepo(q),
		UserArticles:  NewPostgresUserArticleRepo(q),
	}
}

// TxRunner はトランザクション境界の実行インターフェース。
// fnが正常に返った時点でコミットし、エラーを返した場合はロールバックする。
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s *Store) error) error
}

// SQLTxRunner は*sql.DBベースのTxRunner実装。
type SQLTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner はSQLTxRunnerを生成する。
func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

// RunInTx はトランザクションを開始し、tx上のStoreを渡してfnを実行する。
// fnがエラーを返した場合はロールバックし、そのエラーを返す。
func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, s *Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}

	if err := fn(ctx, NewStore(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("ロールバックに失敗しました: %v (元のエラー: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}
	return nil
}

// IsUniqueViolation はPostgreSQLの一意制約違反かどうかを判定する。
// 同一タイトル記事の同時INSERT競合の解決に使用される。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
