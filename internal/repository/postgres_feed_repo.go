package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	q Querier
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(q Querier) *PostgresFeedRepo {
	return &PostgresFeedRepo{q: q}
}

func scanFeed(row interface{ Scan(...interface{}) error }) (*model.Feed, error) {
	feed := &model.Feed{}
	err := row.Scan(&feed.ID, &feed.Publisher, &feed.Journal, &feed.URL, &feed.CreatedAt)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, publisher, journal, url, created_at FROM feeds WHERE id = $1`, id)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// FindByURL はURLでフィードを検索する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByURL(ctx context.Context, url string) (*model.Feed, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, publisher, journal, url, created_at FROM feeds WHERE url = $1`, url)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URLによるフィードの検索に失敗しました: %w", err)
	}
	return feed, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO feeds (id, publisher, journal, url, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		feed.ID, feed.Publisher, feed.Journal, feed.URL, feed.CreatedAt)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// ListSubscribed は1人以上のユーザーが購読している全フィードを返す。
func (r *PostgresFeedRepo) ListSubscribed(ctx context.Context) ([]*model.Feed, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT DISTINCT f.id, f.publisher, f.journal, f.url, f.created_at
		 FROM feeds f
		 JOIN subscriptions s ON s.feed_id = f.id
		 ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("購読フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// ListByUserID は指定ユーザーが購読しているフィードを返す。
func (r *PostgresFeedRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT f.id, f.publisher, f.journal, f.url, f.created_at
		 FROM feeds f
		 JOIN subscriptions s ON s.feed_id = f.id
		 WHERE s.user_id = $1
		 ORDER BY f.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザー購読フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func collectFeeds(rows *sql.Rows) ([]*model.Feed, error) {
	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("フィード行の読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}
