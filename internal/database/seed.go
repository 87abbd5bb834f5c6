package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// seedFeed は初期投入する学術誌フィードの定義。
type seedFeed struct {
	Publisher string
	Journal   string
	URL       string
}

// seedFeeds は初期投入する学術誌フィードのカタログ。
// 登録はURLで冪等なため、既存環境に対して再実行しても安全。
var seedFeeds = []seedFeed{
	{"ACS", "Accounts of Chemical Research", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=achre4"},
	{"ACS", "Accounts of Materials Research", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=amrcda"},
	{"ACS", "ACS Applied Bio Materials", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=aabmcb"},
	{"ACS", "ACS Catalysis", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=accacs"},
	{"ACS", "ACS Nano", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=ancac3"},
	{"ACS", "Journal of the American Chemical Society", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=jacsat"},
	{"ACS", "Chemical Reviews", "https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=chreay"},
	{"Nature", "Nature", "https://www.nature.com/nature.rss"},
	{"Nature", "Nature Chemistry", "https://www.nature.com/nchem.rss"},
	{"Nature", "Nature Materials", "https://www.nature.com/nmat.rss"},
	{"Nature", "Nature Nanotechnology", "https://www.nature.com/nnano.rss"},
	{"Nature", "Nature Catalysis", "https://www.nature.com/natcatal.rss"},
	{"Science", "Science", "https://www.science.org/rss/news_current.xml"},
	{"Wiley", "Angewandte Chemie International Edition", "https://onlinelibrary.wiley.com/feed/15213773/most-recent"},
	{"Wiley", "Advanced Materials", "https://onlinelibrary.wiley.com/feed/15214095/most-recent"},
	{"RSC", "Chemical Science", "https://pubs.rsc.org/en/journals/rss?journalcode=sc"},
	{"RSC", "Chemical Society Reviews", "https://pubs.rsc.org/en/journals/rss?journalcode=cs"},
	{"Elsevier", "Journal of Catalysis", "https://rss.sciencedirect.com/publication/science/00219517"},
}

// SeedFeeds は学術誌フィードのカタログをデータベースに投入する。
// URLが既に存在するフィードはスキップされる（冪等）。
func SeedFeeds(ctx context.Context, db *sql.DB) error {
	slog.Info("フィードカタログの投入を開始します", slog.Int("feed_count", len(seedFeeds)))

	inserted := 0
	for _, f := range seedFeeds {
		result, err := db.ExecContext(ctx,
			`INSERT INTO feeds (id, publisher, journal, url)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (url) DO NOTHING`,
			uuid.New().String(), f.Publisher, f.Journal, f.URL,
		)
		if err != nil {
			return fmt.Errorf("フィードの投入に失敗しました (%s): %w", f.Journal, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("投入件数の取得に失敗しました: %w", err)
		}
		inserted += int(n)
	}

	slog.Info("フィードカタログの投入が完了しました",
		slog.Int("inserted", inserted),
		slog.Int("skipped", len(seedFeeds)-inserted),
	)
	return nil
}
