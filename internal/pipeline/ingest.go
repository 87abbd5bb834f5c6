// Package pipeline はフィード取り込みとキーワードマッチングの中核処理を提供する。
//
// 1回の実行は次のフローで構成される:
//  1. 対象ユーザーと購読フィードの決定
//  2. フィードの並列取得（実行キャッシュで1フィード1回）
//  3. ユーザーごとのマッチング・永続化（ユーザー単位の単一トランザクション）
//
// ユーザー処理の失敗はそのユーザーのトランザクションのみをロールバックし、
// 他のユーザーの処理には影響しない。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sciencefeed/internal/model"
	"github.com/hitoshi/sciencefeed/internal/repository"
)

// ResultSource はフィード取得結果の供給元インターフェース。
// feed.Cacheが実装する。
type ResultSource interface {
	FetchAll(ctx context.Context, feeds []*model.Feed) map[string]model.FeedResult
}

// Sanitizer はHTMLのプレーンテキスト化インターフェース。
// security.ContentSanitizerServiceを抽象化する。
type Sanitizer interface {
	CleanText(raw string) string
}

// Matcher はキーワードマッチングのインターフェース。
// textmatch.Matcherが実装する。
type Matcher interface {
	Match(keywords []string, fields map[string]string) []string
}

// IngestMetrics は取り込み処理のメトリクス記録インターフェース。
type IngestMetrics interface {
	RecordArticlesMatched(count int)
	RecordUsersProcessed()
	RecordUserFailed()
}

// Pipeline はフィード取り込みパイプラインを実行する。
type Pipeline struct {
	store     *repository.Store
	txRunner  repository.TxRunner
	source    ResultSource
	sanitizer Sanitizer
	matcher   Matcher
	metrics   IngestMetrics
	logger    *slog.Logger
	timeout   time.Duration
}

// New はPipelineの新しいインスタンスを生成する。
// storeはトランザクション外の読み取りに使用され、
// 書き込みを伴うユーザー処理はtxRunnerの管理下で実行される。
func New(
	store *repository.Store,
	txRunner repository.TxRunner,
	source ResultSource,
	sanitizer Sanitizer,
	matcher Matcher,
	ingestMetrics IngestMetrics,
	logger *slog.Logger,
	timeout time.Duration,
) *Pipeline {
	return &Pipeline{
		store:     store,
		txRunner:  txRunner,
		source:    source,
		sanitizer: sanitizer,
		matcher:   matcher,
		metrics:   ingestMetrics,
		logger:    logger,
		timeout:   timeout,
	}
}

// RunAll は全アクティブユーザーを対象に取り込みを実行する。
// フィード取得は全ユーザーで共有され、同一フィードの取得は1回のみ行われる。
// 個別ユーザーの失敗はログとメトリクスに記録して処理を継続する。
func (p *Pipeline) RunAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	users, err := p.store.Users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("アクティブユーザーの取得に失敗しました: %w", err)
	}
	if len(users) == 0 {
		p.logger.Info("アクティブなユーザーがいないため取り込みをスキップします")
		return nil
	}

	feeds, err := p.store.Feeds.ListSubscribed(ctx)
	if err != nil {
		return fmt.Errorf("購読フィードの取得に失敗しました: %w", err)
	}

	results := p.source.FetchAll(ctx, feeds)

	processed, failed := 0, 0
	for _, user := range users {
		if ctx.Err() != nil {
			return fmt.Errorf("取り込みが中断されました: %w", ctx.Err())
		}

		if err := p.ingestUser(ctx, user, results); err != nil {
			failed++
			p.metrics.RecordUserFailed()
			p.logger.Error("ユーザーの取り込みに失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		processed++
		p.metrics.RecordUsersProcessed()
	}

	p.logger.Info("取り込みサイクルが完了しました",
		slog.Int("users", len(users)),
		slog.Int("processed", processed),
		slog.Int("failed", failed),
		slog.Int("feeds", len(feeds)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// RunUser は単一ユーザーを対象に取り込みを実行する。
// 更新APIからの手動リフレッシュで使用され、対象ユーザーの購読フィードのみを取得する。
func (p *Pipeline) RunUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	user, err := p.store.Users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	feeds, err := p.store.Feeds.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("購読フィードの取得に失敗しました: %w", err)
	}

	results := p.source.FetchAll(ctx, feeds)

	if err := p.ingestUser(ctx, user, results); err != nil {
		p.metrics.RecordUserFailed()
		return err
	}
	p.metrics.RecordUsersProcessed()
	return nil
}

// ingestUser は1ユーザー分のマッチングと永続化を単一トランザクションで実行する。
// 途中で失敗した場合は全体がロールバックされ、部分的な書き込みは残らない。
func (p *Pipeline) ingestUser(ctx context.Context, user *model.User, results map[string]model.FeedResult) error {
	return p.txRunner.RunInTx(ctx, func(ctx context.Context, s *repository.Store) error {
		keywords, err := s.Keywords.ListActiveByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("キーワードの取得に失敗しました: %w", err)
		}
		if len(keywords) == 0 {
			p.logger.Info("アクティブなキーワードがないためスキップします",
				slog.String("user_id", user.ID),
			)
			return nil
		}

		names := make([]string, len(keywords))
		idByName := make(map[string]string, len(keywords))
		for i, kw := range keywords {
			names[i] = kw.Name
			idByName[kw.Name] = kw.ID
		}

		feeds, err := s.Feeds.ListByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("購読フィードの取得に失敗しました: %w", err)
		}

		newLinks := 0
		for _, f := range feeds {
			result, found := results[f.ID]
			if !found || !result.OK() {
				// 取得に失敗したフィードはこの実行ではゼロ件として扱う
				continue
			}

			for _, entry := range result.Entries {
				summary := p.sanitizer.CleanText(entry.Summary)
				matched := p.matcher.Match(names, map[string]string{
					"title":   entry.Title,
					"summary": summary,
				})
				if len(matched) == 0 {
					continue
				}

				created, err := p.linkEntry(ctx, s, user.ID, f.ID, entry, summary, matched, idByName)
				if err != nil {
					return err
				}
				if created {
					newLinks++
				}
			}
		}

		p.metrics.RecordArticlesMatched(newLinks)
		p.logger.Info("ユーザーの取り込みが完了しました",
			slog.String("user_id", user.ID),
			slog.Int("new_links", newLinks),
		)
		return nil
	})
}

// linkEntry はマッチしたエントリを記事・リンク・マッチキーワードとして永続化する。
// 記事はタイトルで重複排除され、リンクとキーワード関連は冪等に追加される。
// 新規リンクを作成した場合はtrueを返す。
func (p *Pipeline) linkEntry(
	ctx context.Context,
	s *repository.Store,
	userID, feedID string,
	entry model.ParsedEntry,
	summary string,
	matched []string,
	idByName map[string]string,
) (bool, error) {
	article, err := s.Articles.FindOrCreate(ctx, &model.Article{
		ID:      uuid.New().String(),
		FeedID:  feedID,
		Title:   entry.Title,
		Link:    entry.Link,
		Summary: summary,
		AddedAt: time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("記事の保存に失敗しました: %w", err)
	}

	link, err := s.UserArticles.FindByUserAndArticle(ctx, userID, article.ID)
	if err != nil {
		return false, fmt.Errorf("記事リンクの検索に失敗しました: %w", err)
	}

	created := false
	if link == nil {
		link = &model.UserArticle{
			ID:        uuid.New().String(),
			UserID:    userID,
			ArticleID: article.ID,
			AddedAt:   time.Now(),
		}
		if err := s.UserArticles.Create(ctx, link); err != nil {
			return false, fmt.Errorf("記事リンクの作成に失敗しました: %w", err)
		}
		created = true
	}

	keywordIDs := make([]string, 0, len(matched))
	for _, name := range matched {
		if id, found := idByName[name]; found {
			keywordIDs = append(keywordIDs, id)
		}
	}
	if err := s.UserArticles.AddKeywords(ctx, link.ID, keywordIDs); err != nil {
		return false, fmt.Errorf("マッチキーワードの保存に失敗しました: %w", err)
	}

	return created, nil
}
