package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// FetcherService はフィードフェッチの実行インターフェース。
type FetcherService interface {
	// Fetch は指定フィードを取得・パースし、エントリ一覧を返す。
	Fetch(ctx context.Context, feed *model.Feed) ([]model.ParsedEntry, error)
}

// FetchMetrics はフィード取得のメトリクス記録インターフェース。
// metrics.Collectorが実装する。
type FetchMetrics interface {
	RecordFetchSuccess()
	RecordFetchFailure()
	RecordFetchLatency(duration time.Duration)
}

// Cache は1回のパイプライン実行内でフィード取得結果を共有する実行キャッシュ。
// 複数ユーザーが同じフィードを購読していても、実行中の取得は1フィードにつき1回となる。
// semaphoreパターンで最大並列数を制御しながら取得を実行する。
type Cache struct {
	fetcher        FetcherService
	metrics        FetchMetrics
	logger         *slog.Logger
	maxConcurrency int
}

// NewCache はCacheの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewCache(fetcher FetcherService, metrics FetchMetrics, logger *slog.Logger, maxConcurrency int) *Cache {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Cache{
		fetcher:        fetcher,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// FetchAll は全フィードを並列で取得し、フィードIDをキーとする結果マップを返す。
// 個別フィードの失敗は結果のErrに記録され、実行全体は継続する。
// 成功と失敗を明示的に区別するため、失敗したフィードも必ずマップに含まれる。
func (c *Cache) FetchAll(ctx context.Context, feeds []*model.Feed) map[string]model.FeedResult {
	start := time.Now()
	results := make(map[string]model.FeedResult, len(feeds))

	if len(feeds) == 0 {
		return results
	}

	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, feed := range feeds {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(f *model.Feed) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			fetchStart := time.Now()
			entries, err := c.fetcher.Fetch(ctx, f)
			c.metrics.RecordFetchLatency(time.Since(fetchStart))

			if err != nil {
				c.metrics.RecordFetchFailure()
				c.logger.Warn("フィード取得に失敗しました",
					slog.String("feed_id", f.ID),
					slog.String("feed_url", f.URL),
					slog.String("error", err.Error()),
				)
			} else {
				c.metrics.RecordFetchSuccess()
			}

			mu.Lock()
			results[f.ID] = model.FeedResult{FeedID: f.ID, Entries: entries, Err: err}
			mu.Unlock()
		}(feed)
	}

	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}

	c.logger.Info("フィード取得サイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return results
}
