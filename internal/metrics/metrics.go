// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプライン・ダイジェスト送信・クリーンアップの各ジョブから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchFailure()
	RecordFetchLatency(duration time.Duration)
	RecordArticlesMatched(count int)
	RecordUsersProcessed()
	RecordUserFailed()
	RecordDigestSent()
	RecordDigestFailed()
	RecordArticlesPurged(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess    prometheus.Counter
	fetchFail       prometheus.Counter
	fetchLatency    prometheus.Histogram
	articlesMatched prometheus.Counter
	usersProcessed  prometheus.Counter
	usersFailed     prometheus.Counter
	digestSent      prometheus.Counter
	digestFailed    prometheus.Counter
	articlesPurged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_fetch_success_total",
			Help: "フィード取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_fetch_fail_total",
			Help: "フィード取得失敗の合計数",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sciencefeed_fetch_latency_seconds",
			Help:    "フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articlesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_articles_matched_total",
			Help: "キーワードにマッチした記事リンクの合計数",
		}),
		usersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_users_processed_total",
			Help: "パイプラインで処理が完了したユーザーの合計数",
		}),
		usersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_users_failed_total",
			Help: "パイプラインで処理に失敗したユーザーの合計数",
		}),
		digestSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_digest_sent_total",
			Help: "送信されたダイジェストメールの合計数",
		}),
		digestFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_digest_failed_total",
			Help: "送信に失敗したダイジェストメールの合計数",
		}),
		articlesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sciencefeed_articles_purged_total",
			Help: "クリーンアップで物理削除された記事リンクの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.articlesMatched,
		c.usersProcessed,
		c.usersFailed,
		c.digestSent,
		c.digestFailed,
		c.articlesPurged,
	)

	return c
}

// RecordFetchSuccess はフィード取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフィード取得失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	c.fetchFail.Inc()
}

// RecordFetchLatency はフィード取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordArticlesMatched はマッチした記事リンク数を記録する。
func (c *Collector) RecordArticlesMatched(count int) {
	c.articlesMatched.Add(float64(count))
}

// RecordUsersProcessed はユーザー処理完了を記録する。
func (c *Collector) RecordUsersProcessed() {
	c.usersProcessed.Inc()
}

// RecordUserFailed はユーザー処理失敗を記録する。
func (c *Collector) RecordUserFailed() {
	c.usersFailed.Inc()
}

// RecordDigestSent はダイジェストメール送信成功を記録する。
func (c *Collector) RecordDigestSent() {
	c.digestSent.Inc()
}

// RecordDigestFailed はダイジェストメール送信失敗を記録する。
func (c *Collector) RecordDigestFailed() {
	c.digestFailed.Inc()
}

// RecordArticlesPurged はクリーンアップでの物理削除件数を記録する。
func (c *Collector) RecordArticlesPurged(count int) {
	c.articlesPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
