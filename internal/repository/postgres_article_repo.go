package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	q Querier
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(q Querier) *PostgresArticleRepo {
	return &PostgresArticleRepo{q: q}
}

func scanArticle(row interface{ Scan(...interface{}) error }) (*model.Article, error) {
	article := &model.Article{}
	err := row.Scan(&article.ID, &article.FeedID, &article.Title,
		&article.Link, &article.Summary, &article.AddedAt)
	if err != nil {
		return nil, err
	}
	return article, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, feed_id, title, link, summary, added_at
		 FROM articles WHERE id = $1`, id)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return article, nil
}

// FindByTitle はタイトルで記事を検索する。見つからない場合はnilを返す。
// タイトルが記事の重複排除キー。フィード横断で同一タイトルは1行のみ。
func (r *PostgresArticleRepo) FindByTitle(ctx context.Context, title string) (*model.Article, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, feed_id, title, link, summary, added_at
		 FROM articles WHERE title = $1`, title)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイトルによる記事の検索に失敗しました: %w", err)
	}
	return article, nil
}

// Create は新規記事を作成する。
// titleの一意制約に違反した場合のエラーはIsUniqueViolationで判定でき、
// 呼び出し側が既存行を再検索して再利用する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO articles (id, feed_id, title, link, summary, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		article.ID, article.FeedID, article.Title,
		article.Link, article.Summary, article.AddedAt)
	if err != nil {
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// FindOrCreate はタイトルで記事を検索し、存在しなければ作成して返す。
// ON CONFLICT DO NOTHINGを使用するため、同一タイトルの同時挿入があっても
// トランザクションをエラー状態にせず、コミット済みの既存行を返す。
func (r *PostgresArticleRepo) FindOrCreate(ctx context.Context, article *model.Article) (*model.Article, error) {
	row := r.q.QueryRowContext(ctx,
		`INSERT INTO articles (id, feed_id, title, link, summary, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (title) DO NOTHING
		 RETURNING id, feed_id, title, link, summary, added_at`,
		article.ID, article.FeedID, article.Title,
		article.Link, article.Summary, article.AddedAt)

	created, err := scanArticle(row)
	if err == nil {
		return created, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	// 挿入がスキップされた場合は既存行を返す
	existing, err := r.FindByTitle(ctx, article.Title)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("記事の作成競合後に既存行が見つかりません: title=%s", article.Title)
	}
	return existing, nil
}
