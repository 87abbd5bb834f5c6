package feed

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// nopFetchMetrics はFetchMetricsのテスト用スタブ。呼び出し回数のみ記録する。
type nopFetchMetrics struct {
	success atomic.Int64
	failure atomic.Int64
}

func (m *nopFetchMetrics) RecordFetchSuccess()                { m.success.Add(1) }
func (m *nopFetchMetrics) RecordFetchFailure()                { m.failure.Add(1) }
func (m *nopFetchMetrics) RecordFetchLatency(_ time.Duration) {}

// mockFetcher はFetcherServiceのテスト用モック。
// フィードIDごとに返す結果を設定できる。
type mockFetcher struct {
	entries   map[string][]model.ParsedEntry
	errs      map[string]error
	callCount atomic.Int64
}

func (m *mockFetcher) Fetch(_ context.Context, feed *model.Feed) ([]model.ParsedEntry, error) {
	m.callCount.Add(1)
	if err, ok := m.errs[feed.ID]; ok {
		return nil, err
	}
	return m.entries[feed.ID], nil
}

func TestFetchAll_AllSucceed(t *testing.T) {
	fetcher := &mockFetcher{
		entries: map[string][]model.ParsedEntry{
			"f1": {{Title: "a", Link: "l1", Summary: "s1"}},
			"f2": {{Title: "b", Link: "l2", Summary: "s2"}, {Title: "c", Link: "l3", Summary: "s3"}},
		},
	}
	var buf bytes.Buffer
	cache := NewCache(fetcher, &nopFetchMetrics{}, newTestLogger(&buf), 4)

	feeds := []*model.Feed{{ID: "f1"}, {ID: "f2"}}
	results := cache.FetchAll(context.Background(), feeds)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results["f1"].OK() || len(results["f1"].Entries) != 1 {
		t.Errorf("unexpected result for f1: %+v", results["f1"])
	}
	if !results["f2"].OK() || len(results["f2"].Entries) != 2 {
		t.Errorf("unexpected result for f2: %+v", results["f2"])
	}
}

func TestFetchAll_FailureIsIsolated(t *testing.T) {
	fetcher := &mockFetcher{
		entries: map[string][]model.ParsedEntry{
			"ok": {{Title: "a", Link: "l", Summary: "s"}},
		},
		errs: map[string]error{
			"bad": fmt.Errorf("connection refused"),
		},
	}
	var buf bytes.Buffer
	fetchMetrics := &nopFetchMetrics{}
	cache := NewCache(fetcher, fetchMetrics, newTestLogger(&buf), 4)

	results := cache.FetchAll(context.Background(), []*model.Feed{{ID: "ok"}, {ID: "bad"}})

	// 失敗したフィードも結果マップに含まれる
	bad, found := results["bad"]
	if !found {
		t.Fatal("failed feed must be present in results")
	}
	if bad.OK() {
		t.Error("failed feed result must not be OK")
	}
	if !results["ok"].OK() {
		t.Error("other feeds must succeed despite one failure")
	}
	if fetchMetrics.success.Load() != 1 || fetchMetrics.failure.Load() != 1 {
		t.Errorf("metrics: success=%d failure=%d, want 1/1",
			fetchMetrics.success.Load(), fetchMetrics.failure.Load())
	}
}

func TestFetchAll_EachFeedFetchedOnce(t *testing.T) {
	fetcher := &mockFetcher{entries: map[string][]model.ParsedEntry{}}
	var buf bytes.Buffer
	cache := NewCache(fetcher, &nopFetchMetrics{}, newTestLogger(&buf), 2)

	feeds := make([]*model.Feed, 20)
	for i := range feeds {
		feeds[i] = &model.Feed{ID: fmt.Sprintf("f%d", i)}
	}

	results := cache.FetchAll(context.Background(), feeds)

	if got := fetcher.callCount.Load(); got != 20 {
		t.Errorf("fetch call count = %d, want 20", got)
	}
	if len(results) != 20 {
		t.Errorf("got %d results, want 20", len(results))
	}
}

func TestFetchAll_EmptyFeeds(t *testing.T) {
	var buf bytes.Buffer
	cache := NewCache(&mockFetcher{}, &nopFetchMetrics{}, newTestLogger(&buf), 4)

	results := cache.FetchAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}
