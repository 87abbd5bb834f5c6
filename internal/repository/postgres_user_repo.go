package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	q Querier
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(q Querier) *PostgresUserRepo {
	return &PostgresUserRepo{q: q}
}

const userColumns = `id, username, email, active, send_feed_emails, max_articles_per_email,
	last_rss_update, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	var lastRSSUpdate sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Active,
		&user.SendFeedEmails, &user.MaxArticlesPerEmail,
		&lastRSSUpdate, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastRSSUpdate.Valid {
		user.LastRSSUpdate = &lastRSSUpdate.Time
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByUsernameOrEmail はユーザー名またはメールアドレスが一致するユーザーを取得する。
// 見つからない場合はnilを返す。新規登録時の重複チェックに使用される。
func (r *PostgresUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $2 LIMIT 1`,
		username, email)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, username, email, active, send_feed_emails,
		                    max_articles_per_email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.Email, user.Active,
		user.SendFeedEmails, user.MaxArticlesPerEmail,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// ListActive はアクティブな全ユーザーを返す。
func (r *PostgresUserRepo) ListActive(ctx context.Context) ([]*model.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE active = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("アクティブユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// ListDigestRecipients はダイジェストメールの送信対象ユーザーを返す。
// active かつ send_feed_emails=true かつ未読・未アーカイブのリンクを
// 1件以上持つユーザーが対象。
func (r *PostgresUserRepo) ListDigestRecipients(ctx context.Context) ([]*model.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.active = TRUE
		   AND u.send_feed_emails = TRUE
		   AND EXISTS (
		       SELECT 1 FROM user_articles ua
		       WHERE ua.user_id = u.id
		         AND ua.is_read = FALSE
		         AND ua.is_archived = FALSE
		   )
		 ORDER BY u.created_at`)
	if err != nil {
		return nil, fmt.Errorf("ダイジェスト対象ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateLastRSSUpdate はユーザーのlast_rss_updateを更新する。
func (r *PostgresUserRepo) UpdateLastRSSUpdate(ctx context.Context, userID string, t time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET last_rss_update = $2, updated_at = now() WHERE id = $1`,
		userID, t)
	if err != nil {
		return fmt.Errorf("last_rss_updateの更新に失敗しました: %w", err)
	}
	return nil
}
