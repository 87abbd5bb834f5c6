package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/sciencefeed/internal/model"
)

func TestIsDirectFeed(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        bool
	}{
		{
			name:        "RSS Content-Type",
			contentType: "application/rss+xml",
			want:        true,
		},
		{
			name:        "Atom Content-Type",
			contentType: "application/atom+xml; charset=utf-8",
			want:        true,
		},
		{
			name:        "汎用XMLでRSSボディ",
			contentType: "text/xml",
			body:        `<?xml version="1.0"?><rss version="2.0"></rss>`,
			want:        true,
		},
		{
			name:        "汎用XMLでAtomボディ",
			contentType: "application/xml",
			body:        `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`,
			want:        true,
		},
		{
			name:        "汎用XMLでフィードでないボディ",
			contentType: "text/xml",
			body:        `<?xml version="1.0"?><sitemap></sitemap>`,
			want:        false,
		},
		{
			name:        "HTML",
			contentType: "text/html",
			body:        "<html></html>",
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDirectFeed(tt.contentType, []byte(tt.body)); got != tt.want {
				t.Errorf("IsDirectFeed(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestParseFeedLinksFromHTML(t *testing.T) {
	htmlBody := `<html><head>
		<link rel="alternate" type="application/rss+xml" title="RSS" href="/feed.rss">
		<link rel="alternate" type="application/atom+xml" title="Atom" href="https://other.example.com/feed.atom">
		<link rel="stylesheet" type="text/css" href="/style.css">
		<link rel="alternate" type="text/html" href="/mobile">
	</head><body></body></html>`

	candidates := ParseFeedLinksFromHTML([]byte(htmlBody), "https://journal.example.com/toc")

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].URL != "https://journal.example.com/feed.rss" {
		t.Errorf("relative URL not resolved: %q", candidates[0].URL)
	}
	if candidates[0].FeedType != FeedTypeRSS {
		t.Errorf("unexpected feed type: %q", candidates[0].FeedType)
	}
	if candidates[1].URL != "https://other.example.com/feed.atom" {
		t.Errorf("absolute URL altered: %q", candidates[1].URL)
	}
	if candidates[1].FeedType != FeedTypeAtom {
		t.Errorf("unexpected feed type: %q", candidates[1].FeedType)
	}
}

func TestParseFeedLinksFromHTML_BodyStopsParsing(t *testing.T) {
	htmlBody := `<html><head></head><body>
		<link rel="alternate" type="application/rss+xml" href="/feed.rss">
	</body></html>`

	candidates := ParseFeedLinksFromHTML([]byte(htmlBody), "https://example.com/")
	if len(candidates) != 0 {
		t.Errorf("links outside head must be ignored, got %d", len(candidates))
	}
}

func TestSelectBestFeed(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		inputURL   string
		wantURL    string
	}{
		{
			name:       "候補なし",
			candidates: nil,
			inputURL:   "https://example.com/",
			wantURL:    "",
		},
		{
			name: "同一ホスト優先",
			candidates: []Candidate{
				{URL: "https://other.example.com/feed.atom", FeedType: FeedTypeAtom},
				{URL: "https://example.com/feed.rss", FeedType: FeedTypeRSS},
			},
			inputURL: "https://example.com/toc",
			wantURL:  "https://example.com/feed.rss",
		},
		{
			name: "同一ホスト内はAtom優先",
			candidates: []Candidate{
				{URL: "https://example.com/feed.rss", FeedType: FeedTypeRSS},
				{URL: "https://example.com/feed.atom", FeedType: FeedTypeAtom},
			},
			inputURL: "https://example.com/toc",
			wantURL:  "https://example.com/feed.atom",
		},
		{
			name: "同スコアは先頭優先",
			candidates: []Candidate{
				{URL: "https://example.com/a.rss", FeedType: FeedTypeRSS},
				{URL: "https://example.com/b.rss", FeedType: FeedTypeRSS},
			},
			inputURL: "https://example.com/toc",
			wantURL:  "https://example.com/a.rss",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBestFeed(tt.candidates, tt.inputURL)
			if tt.wantURL == "" {
				if got != nil {
					t.Errorf("SelectBestFeed = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.URL != tt.wantURL {
				t.Errorf("SelectBestFeed = %+v, want URL %q", got, tt.wantURL)
			}
		})
	}
}

func newTestDetector(guard SSRFValidator) *Detector {
	return NewDetector(guard, 10*time.Second, 5*1024*1024)
}

func TestDetectFeedURL_DirectFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"></rss>`)
	}))
	defer server.Close()

	detector := newTestDetector(&mockSSRFGuard{})
	got, err := detector.DetectFeedURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("DetectFeedURL failed: %v", err)
	}
	if got != server.URL {
		t.Errorf("got %q, want %q", got, server.URL)
	}
}

func TestDetectFeedURL_HTMLAutodiscovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<link rel="alternate" type="application/rss+xml" href="/journal/feed.rss">
		</head><body></body></html>`)
	}))
	defer server.Close()

	detector := newTestDetector(&mockSSRFGuard{})
	got, err := detector.DetectFeedURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("DetectFeedURL failed: %v", err)
	}
	want := server.URL + "/journal/feed.rss"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDetectFeedURL_Errors(t *testing.T) {
	t.Run("空URL", func(t *testing.T) {
		detector := newTestDetector(&mockSSRFGuard{})
		_, err := detector.DetectFeedURL(context.Background(), "")
		assertErrorCode(t, err, model.ErrCodeInvalidURL)
	})

	t.Run("SSRFブロック", func(t *testing.T) {
		detector := newTestDetector(&mockSSRFGuard{validateErr: fmt.Errorf("blocked")})
		_, err := detector.DetectFeedURL(context.Background(), "http://169.254.169.254/")
		assertErrorCode(t, err, model.ErrCodeSSRFBlocked)
	})

	t.Run("フィード未検出", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><head></head><body>no feeds here</body></html>")
		}))
		defer server.Close()

		detector := newTestDetector(&mockSSRFGuard{})
		_, err := detector.DetectFeedURL(context.Background(), server.URL)
		assertErrorCode(t, err, model.ErrCodeFeedNotDetected)
	})

	t.Run("HTMLでもフィードでもない", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, "{}")
		}))
		defer server.Close()

		detector := newTestDetector(&mockSSRFGuard{})
		_, err := detector.DetectFeedURL(context.Background(), server.URL)
		assertErrorCode(t, err, model.ErrCodeFeedNotDetected)
	})
}

// assertErrorCode はAPIErrorのコードを検証するテストヘルパー。
func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *model.APIError: %v", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}
