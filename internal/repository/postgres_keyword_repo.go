package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// PostgresKeywordRepo はPostgreSQLを使用したキーワードリポジトリ。
type PostgresKeywordRepo struct {
	q Querier
}

// NewPostgresKeywordRepo はPostgresKeywordRepoを生成する。
func NewPostgresKeywordRepo(q Querier) *PostgresKeywordRepo {
	return &PostgresKeywordRepo{q: q}
}

func scanKeyword(row interface{ Scan(...interface{}) error }) (*model.Keyword, error) {
	kw := &model.Keyword{}
	err := row.Scan(&kw.ID, &kw.UserID, &kw.Name, &kw.Active, &kw.CreatedAt)
	if err != nil {
		return nil, err
	}
	return kw, nil
}

// FindByID は指定IDのキーワードを取得する。見つからない場合はnilを返す。
func (r *PostgresKeywordRepo) FindByID(ctx context.Context, id string) (*model.Keyword, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, name, active, created_at FROM keywords WHERE id = $1`, id)

	kw, err := scanKeyword(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キーワードの取得に失敗しました: %w", err)
	}
	return kw, nil
}

// FindByUserAndName はユーザーIDと名前でキーワードを検索する。見つからない場合はnilを返す。
func (r *PostgresKeywordRepo) FindByUserAndName(ctx context.Context, userID, name string) (*model.Keyword, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, name, active, created_at
		 FROM keywords WHERE user_id = $1 AND name = $2`, userID, name)

	kw, err := scanKeyword(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("名前によるキーワードの検索に失敗しました: %w", err)
	}
	return kw, nil
}

// ListByUserID はユーザーの全キーワードを返す。
func (r *PostgresKeywordRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Keyword, error) {
	return r.list(ctx,
		`SELECT id, user_id, name, active, created_at
		 FROM keywords WHERE user_id = $1 ORDER BY created_at`, userID)
}

// ListActiveByUserID はユーザーのアクティブなキーワードを返す。
func (r *PostgresKeywordRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.Keyword, error) {
	return r.list(ctx,
		`SELECT id, user_id, name, active, created_at
		 FROM keywords WHERE user_id = $1 AND active = TRUE ORDER BY created_at`, userID)
}

func (r *PostgresKeywordRepo) list(ctx context.Context, query string, args ...interface{}) ([]*model.Keyword, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("キーワード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var keywords []*model.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("キーワード行の読み取りに失敗しました: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キーワード一覧の走査に失敗しました: %w", err)
	}
	return keywords, nil
}

// Create はキーワードを作成する。
func (r *PostgresKeywordRepo) Create(ctx context.Context, keyword *model.Keyword) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO keywords (id, user_id, name, active, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		keyword.ID, keyword.UserID, keyword.Name, keyword.Active, keyword.CreatedAt)
	if err != nil {
		return fmt.Errorf("キーワードの作成に失敗しました: %w", err)
	}
	return nil
}

// SetActive はキーワードの有効/無効を切り替える。
func (r *PostgresKeywordRepo) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE keywords SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("キーワードの切り替えに失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのキーワードを削除する。
// user_article_keywordsの関連行はCASCADE削除される。
func (r *PostgresKeywordRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM keywords WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("キーワードの削除に失敗しました: %w", err)
	}
	return nil
}
