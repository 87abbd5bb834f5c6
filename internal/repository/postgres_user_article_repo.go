package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// PostgresUserArticleRepo はPostgreSQLを使用したユーザー記事リンクリポジトリ。
type PostgresUserArticleRepo struct {
	q Querier
}

// NewPostgresUserArticleRepo はPostgresUserArticleRepoを生成する。
func NewPostgresUserArticleRepo(q Querier) *PostgresUserArticleRepo {
	return &PostgresUserArticleRepo{q: q}
}

// FindByUserAndArticle はユーザーIDと記事IDでリンクを検索する。見つからない場合はnilを返す。
// マッチ済みキーワードの集合も同時に取得する。
func (r *PostgresUserArticleRepo) FindByUserAndArticle(ctx context.Context, userID, articleID string) (*model.UserArticle, error) {
	link := &model.UserArticle{}
	var readAt, archivedAt, deletedAt sql.NullTime

	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, article_id, is_read, is_archived, is_deleted,
		        added_at, read_at, archived_at, deleted_at
		 FROM user_articles WHERE user_id = $1 AND article_id = $2`,
		userID, articleID,
	).Scan(
		&link.ID, &link.UserID, &link.ArticleID,
		&link.IsRead, &link.IsArchived, &link.IsDeleted,
		&link.AddedAt, &readAt, &archivedAt, &deletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー記事リンクの検索に失敗しました: %w", err)
	}

	if readAt.Valid {
		link.ReadAt = &readAt.Time
	}
	if archivedAt.Valid {
		link.ArchivedAt = &archivedAt.Time
	}
	if deletedAt.Valid {
		link.DeletedAt = &deletedAt.Time
	}

	keywords, err := r.listLinkKeywords(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	link.Keywords = keywords

	return link, nil
}

func (r *PostgresUserArticleRepo) listLinkKeywords(ctx context.Context, linkID string) ([]model.Keyword, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT k.id, k.user_id, k.name, k.active, k.created_at
		 FROM keywords k
		 JOIN user_article_keywords uak ON uak.keyword_id = k.id
		 WHERE uak.user_article_id = $1
		 ORDER BY k.name`, linkID)
	if err != nil {
		return nil, fmt.Errorf("リンクのキーワード取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var keywords []model.Keyword
	for rows.Next() {
		var kw model.Keyword
		if err := rows.Scan(&kw.ID, &kw.UserID, &kw.Name, &kw.Active, &kw.CreatedAt); err != nil {
			return nil, fmt.Errorf("キーワード行の読み取りに失敗しました: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キーワード一覧の走査に失敗しました: %w", err)
	}
	return keywords, nil
}

// Create はリンクを作成する。
func (r *PostgresUserArticleRepo) Create(ctx context.Context, link *model.UserArticle) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO user_articles (id, user_id, article_id, added_at)
		 VALUES ($1, $2, $3, $4)`,
		link.ID, link.UserID, link.ArticleID, link.AddedAt)
	if err != nil {
		return fmt.Errorf("ユーザー記事リンクの作成に失敗しました: %w", err)
	}
	return nil
}

// AddKeywords はリンクのmatched_keywords集合にキーワードを追加する。
// ON CONFLICT DO NOTHINGにより既存の関連付けは無視される（冪等な和集合）。
func (r *PostgresUserArticleRepo) AddKeywords(ctx context.Context, linkID string, keywordIDs []string) error {
	if len(keywordIDs) == 0 {
		return nil
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO user_article_keywords (user_article_id, keyword_id)
		 SELECT $1, unnest($2::uuid[])
		 ON CONFLICT DO NOTHING`,
		linkID, pq.Array(keywordIDs))
	if err != nil {
		return fmt.Errorf("マッチキーワードの追加に失敗しました: %w", err)
	}
	return nil
}

// SetRead は既読フラグを切り替える。
// read_atはfalse→true遷移時のみ設定され、true→false遷移で解除される。
func (r *PostgresUserArticleRepo) SetRead(ctx context.Context, userID, articleID string, read bool) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE user_articles
		 SET is_read = $3,
		     read_at = CASE
		         WHEN $3 AND NOT is_read THEN now()
		         WHEN NOT $3 THEN NULL
		         ELSE read_at
		     END
		 WHERE user_id = $1 AND article_id = $2`,
		userID, articleID, read)
	if err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// SetArchived はアーカイブフラグを切り替える。アーカイブは既読も兼ねる。
func (r *PostgresUserArticleRepo) SetArchived(ctx context.Context, userID, articleID string, archived bool) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE user_articles
		 SET is_archived = $3,
		     archived_at = CASE
		         WHEN $3 AND NOT is_archived THEN now()
		         WHEN NOT $3 THEN NULL
		         ELSE archived_at
		     END,
		     is_read = $3,
		     read_at = CASE
		         WHEN $3 AND NOT is_read THEN now()
		         WHEN NOT $3 THEN NULL
		         ELSE read_at
		     END
		 WHERE user_id = $1 AND article_id = $2`,
		userID, articleID, archived)
	if err != nil {
		return fmt.Errorf("アーカイブフラグの更新に失敗しました: %w", err)
	}
	return nil
}

// MarkDeleted はリンクを削除済みにする。既読・アーカイブも同時に立てる。
// 物理削除は保持期間経過後にクリーンアップジョブが行う。
func (r *PostgresUserArticleRepo) MarkDeleted(ctx context.Context, userID, articleID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE user_articles
		 SET is_deleted = TRUE,
		     deleted_at = CASE WHEN is_deleted THEN deleted_at ELSE now() END,
		     is_read = TRUE,
		     read_at = COALESCE(read_at, now()),
		     is_archived = TRUE,
		     archived_at = COALESCE(archived_at, now())
		 WHERE user_id = $1 AND article_id = $2`,
		userID, articleID)
	if err != nil {
		return fmt.Errorf("削除フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// ListUnreadDigest はユーザーの未読・未アーカイブのリンクを
// ダイジェスト表示用データとしてadded_atの古い順に最大limit件返す。
func (r *PostgresUserArticleRepo) ListUnreadDigest(ctx context.Context, userID string, limit int) ([]model.DigestArticle, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT a.title, a.link, a.summary, f.publisher, f.journal, ua.added_at,
		        COALESCE(array_agg(k.name ORDER BY k.name)
		                 FILTER (WHERE k.name IS NOT NULL), '{}') AS keywords
		 FROM user_articles ua
		 JOIN articles a ON a.id = ua.article_id
		 JOIN feeds f ON f.id = a.feed_id
		 LEFT JOIN user_article_keywords uak ON uak.user_article_id = ua.id
		 LEFT JOIN keywords k ON k.id = uak.keyword_id
		 WHERE ua.user_id = $1
		   AND ua.is_read = FALSE
		   AND ua.is_archived = FALSE
		 GROUP BY ua.id, a.title, a.link, a.summary, f.publisher, f.journal, ua.added_at
		 ORDER BY ua.added_at ASC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("未読記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []model.DigestArticle
	for rows.Next() {
		var da model.DigestArticle
		var keywords pq.StringArray
		if err := rows.Scan(&da.Title, &da.Link, &da.Summary,
			&da.Publisher, &da.Journal, &da.AddedAt, &keywords); err != nil {
			return nil, fmt.Errorf("未読記事行の読み取りに失敗しました: %w", err)
		}
		da.Keywords = []string(keywords)
		articles = append(articles, da)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未読記事一覧の走査に失敗しました: %w", err)
	}
	return articles, nil
}

// DeleteExpired はis_deleted=trueかつdeleted_atがcutoffより古いリンクを物理削除する。
// 関連するuser_article_keywordsはCASCADE削除される。冪等。
func (r *PostgresUserArticleRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM user_articles
		 WHERE is_deleted = TRUE AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("期限切れリンクの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// DeleteOrphans はマッチキーワードが1件も残っていないリンクを削除する。冪等。
func (r *PostgresUserArticleRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM user_articles ua
		 WHERE NOT EXISTS (
		     SELECT 1 FROM user_article_keywords uak
		     WHERE uak.user_article_id = ua.id
		 )`)
	if err != nil {
		return 0, fmt.Errorf("孤立リンクの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}
