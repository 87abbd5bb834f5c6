package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	q Querier
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(q Querier) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{q: q}
}

// FindByUserAndFeed はユーザーIDとフィードIDで購読を検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByUserAndFeed(ctx context.Context, userID, feedID string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, feed_id, created_at
		 FROM subscriptions WHERE user_id = $1 AND feed_id = $2`,
		userID, feedID,
	).Scan(&sub.ID, &sub.UserID, &sub.FeedID, &sub.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読の検索に失敗しました: %w", err)
	}
	return sub, nil
}

// Create は購読を作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, subscription *model.Subscription) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, feed_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		subscription.ID, subscription.UserID, subscription.FeedID, subscription.CreatedAt)
	if err != nil {
		return fmt.Errorf("購読の作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーとフィードの購読関係を削除する。
func (r *PostgresSubscriptionRepo) Delete(ctx context.Context, userID, feedID string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = $1 AND feed_id = $2`,
		userID, feedID)
	if err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの購読一覧を返す。
func (r *PostgresSubscriptionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Subscription, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, user_id, feed_id, created_at
		 FROM subscriptions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscription
	for rows.Next() {
		sub := &model.Subscription{}
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.FeedID, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("購読行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}
