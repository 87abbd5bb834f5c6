package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherCounter は指定した名前のカウンタ値を取得するテストヘルパー。
func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCounters_Increment は各カウンタが増加することを検証する。
func TestCounters_Increment(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess()
	c.RecordFetchSuccess()
	c.RecordFetchFailure()
	c.RecordArticlesMatched(5)
	c.RecordUsersProcessed()
	c.RecordUserFailed()
	c.RecordDigestSent()
	c.RecordDigestFailed()
	c.RecordArticlesPurged(3)

	tests := []struct {
		name string
		want float64
	}{
		{"sciencefeed_fetch_success_total", 2},
		{"sciencefeed_fetch_fail_total", 1},
		{"sciencefeed_articles_matched_total", 5},
		{"sciencefeed_users_processed_total", 1},
		{"sciencefeed_users_failed_total", 1},
		{"sciencefeed_digest_sent_total", 1},
		{"sciencefeed_digest_failed_total", 1},
		{"sciencefeed_articles_purged_total", 3},
	}
	for _, tt := range tests {
		if got := gatherCounter(t, reg, tt.name); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestRecordFetchLatency_ObservesHistogram はレイテンシが記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(150 * time.Millisecond)
	c.RecordFetchLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == "sciencefeed_fetch_latency_seconds" {
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample count = %d, want 2", h.GetSampleCount())
			}
			return
		}
	}
	t.Error("sciencefeed_fetch_latency_seconds metric not found")
}

// TestHandler_ServesMetrics は/metricsハンドラーがメトリクスを出力することを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFetchSuccess()

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "sciencefeed_fetch_success_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
