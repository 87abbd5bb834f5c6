// Package feed は学術誌フィードの取得・検出・登録のドメインロジックを提供する。
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Fetcher は個別フィードのHTTPフェッチとパースを行う。
// SSRF検証付きクライアントで取得し、gofeedでパースした結果を
// マッチング対象のエントリ一覧に変換する。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch は1フィードを取得・パースし、エントリ一覧を返す。
// タイトル・リンク・要約のいずれかを欠くエントリは不正形式としてスキップされる。
// 取得・パースの失敗はエラーとして返し、呼び出し側（実行キャッシュ）が
// 該当フィードのみの失敗として扱う。
func (f *Fetcher) Fetch(ctx context.Context, feed *model.Feed) ([]model.ParsedEntry, error) {
	start := time.Now()

	if err := f.ssrfGuard.ValidateURL(feed.URL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "ScienceFeed/1.0 RSS Reader")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parsedFeed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	entries, skipped := convertGofeedItems(parsedFeed.Items)

	f.logger.Info("フィード取得が完了しました",
		slog.String("feed_id", feed.ID),
		slog.String("journal", feed.Journal),
		slog.Int("entries", len(entries)),
		slog.Int("skipped", skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return entries, nil
}

// convertGofeedItems はgofeedの記事をmodel.ParsedEntryに変換する。
// 必須フィールドを欠くエントリはスキップし、スキップ件数を返す。
func convertGofeedItems(items []*gofeed.Item) ([]model.ParsedEntry, int) {
	entries := make([]model.ParsedEntry, 0, len(items))
	skipped := 0

	for _, item := range items {
		if item == nil {
			skipped++
			continue
		}

		entry := model.ParsedEntry{
			Title:   item.Title,
			Link:    item.Link,
			Summary: item.Description,
		}

		// 要約がない場合は本文で代替する
		if entry.Summary == "" && item.Content != "" {
			entry.Summary = item.Content
		}

		if !entry.IsComplete() {
			skipped++
			continue
		}

		entries = append(entries, entry)
	}

	return entries, skipped
}
