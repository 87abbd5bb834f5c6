package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	// FeedTypeRSS はRSSフィード。
	FeedTypeRSS FeedType = "rss"
	// FeedTypeAtom はAtomフィード。
	FeedTypeAtom FeedType = "atom"
)

// Candidate はHTMLから検出されたフィード候補を表す。
type Candidate struct {
	URL      string
	FeedType FeedType
	Title    string
}

// Detector はフィードURLの自動検出機能を提供する。
// 学術誌の論文一覧ページのURLが入力された場合でも、
// headタグのlink要素からRSS/AtomフィードのURLを検出する。
type Detector struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewDetector はDetectorの新しいインスタンスを生成する。
func NewDetector(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *Detector {
	return &Detector{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// DetectFeedURL はURLがフィードかHTMLかを判定し、フィードURLを返す。
// フィード直指定の場合は入力URLをそのまま返す。
// HTMLの場合はheadタグからフィードリンクを検出し、優先順位で選択する。
// フィード未検出の場合は原因カテゴリと対処方法を含むエラーを返す。
func (d *Detector) DetectFeedURL(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", model.NewInvalidURLError("URLが入力されていません")
	}

	if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
		return "", model.NewSSRFBlockedError()
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "ScienceFeed/1.0 RSS Reader")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize))
	if err != nil {
		return "", model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	contentType := resp.Header.Get("Content-Type")

	if IsDirectFeed(contentType, body) {
		return inputURL, nil
	}

	if !isHTMLContentType(contentType) {
		return "", model.NewFeedNotDetectedError(inputURL)
	}

	candidates := ParseFeedLinksFromHTML(body, inputURL)
	best := SelectBestFeed(candidates, inputURL)
	if best == nil {
		return "", model.NewFeedNotDetectedError(inputURL)
	}

	return best.URL, nil
}

// feedContentTypes はフィードとして直接認識するContent-Type。
var feedContentTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// xmlContentTypes は汎用XMLのContent-Type（ボディ解析で判定する）。
var xmlContentTypes = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

// IsDirectFeed はContent-Typeとボディから、レスポンスがRSS/Atomフィードかを判定する。
func IsDirectFeed(contentType string, body []byte) bool {
	mediaType := normalizeMediaType(contentType)

	if feedContentTypes[mediaType] {
		return true
	}

	// 汎用XMLの場合はボディの先頭部分を解析する
	if xmlContentTypes[mediaType] && len(body) > 0 {
		return isRSSOrAtomXML(body)
	}

	return false
}

// normalizeMediaType はContent-Typeヘッダからメディアタイプを抽出する。
// charsetなどのパラメータは除去される。
func normalizeMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// isHTMLContentType はContent-TypeがHTMLかを判定する。
func isHTMLContentType(contentType string) bool {
	return strings.Contains(normalizeMediaType(contentType), "html")
}

// isRSSOrAtomXML はXMLボディの先頭部分を解析してRSS/Atomフィードかを判定する。
// 先頭4KBにXMLプロローグとルート要素が含まれることを前提とする。
func isRSSOrAtomXML(body []byte) bool {
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseFeedLinksFromHTML はHTMLのheadタグからRSS/Atomフィードリンクを検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func ParseFeedLinksFromHTML(htmlBody []byte, baseURL string) []Candidate {
	var candidates []Candidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "head":
				inHead = true
			case "body":
				// bodyに入ったらheadの解析を終了
				return candidates
			case "link":
				if !inHead || !hasAttr {
					continue
				}
				if c := parseLinkElement(tokenizer, baseU); c != nil {
					candidates = append(candidates, *c)
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// parseLinkElement はlink要素の属性を解析し、rel="alternate"の
// RSS/Atomリンクであればフィード候補を返す。対象外の場合はnilを返す。
func parseLinkElement(tokenizer *html.Tokenizer, base *url.URL) *Candidate {
	var rel, linkType, href, title string
	for {
		key, val, more := tokenizer.TagAttr()
		switch strings.ToLower(string(key)) {
		case "rel":
			rel = strings.ToLower(string(val))
		case "type":
			linkType = strings.ToLower(string(val))
		case "href":
			href = string(val)
		case "title":
			title = string(val)
		}
		if !more {
			break
		}
	}

	if rel != "alternate" || href == "" {
		return nil
	}

	var feedType FeedType
	switch linkType {
	case "application/rss+xml":
		feedType = FeedTypeRSS
	case "application/atom+xml":
		feedType = FeedTypeAtom
	default:
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}

	return &Candidate{
		URL:      base.ResolveReference(ref).String(),
		FeedType: feedType,
		Title:    title,
	}
}

// SelectBestFeed は複数のフィード候補から優先順位に従って最適なフィードを選択する。
// 優先順位: 同一ホスト > Atom > RSS > 先頭。候補が空の場合はnilを返す。
func SelectBestFeed(candidates []Candidate, inputURL string) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := extractHost(inputURL)
	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0
		if extractHost(c.URL) == inputHost {
			score += 100
		}
		if c.FeedType == FeedTypeAtom {
			score += 10
		}
		// 同スコアの場合は先頭の候補を優先する
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &candidates[bestIdx]
}

// extractHost はURLからホスト名を抽出する。
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
