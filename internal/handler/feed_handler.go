package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sciencefeed/internal/middleware"
	"github.com/hitoshi/sciencefeed/internal/model"
)

// FeedService はフィード登録・購読管理のサービスインターフェース。
type FeedService interface {
	Register(ctx context.Context, publisher, journal, url string) (*model.Feed, error)
	Subscribe(ctx context.Context, userID, feedID string) (*model.Subscription, error)
	Unsubscribe(ctx context.Context, userID, feedID string) error
	ListForUser(ctx context.Context, userID string) ([]*model.Feed, error)
}

// FeedHandler はフィードカタログと購読のエンドポイントを処理する。
type FeedHandler struct {
	feeds FeedService
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(feeds FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

type feedResponse struct {
	ID        string `json:"id"`
	Publisher string `json:"publisher"`
	Journal   string `json:"journal"`
	URL       string `json:"url"`
}

func toFeedResponse(f *model.Feed) feedResponse {
	return feedResponse{
		ID:        f.ID,
		Publisher: f.Publisher,
		Journal:   f.Journal,
		URL:       f.URL,
	}
}

type listFeedsResponse struct {
	RSSFeeds []feedResponse `json:"rss_feeds"`
}

// List はユーザーが購読しているフィードの一覧を返す。
// GET /api/user/rss_feeds
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	feeds, err := h.feeds.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, toFeedResponse(f))
	}
	writeJSON(w, http.StatusOK, listFeedsResponse{RSSFeeds: out})
}

type addFeedRequest struct {
	Publisher string `json:"publisher"`
	Journal   string `json:"journal"`
	URL       string `json:"url"`
}

// Add はURLからフィードを検出してカタログに登録し、登録したユーザーを
// そのまま購読者にする。入力URLが論文一覧ページの場合は自動検出で
// フィードURLに解決される。
// POST /api/user/rss_feeds
func (h *FeedHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req addFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	feed, err := h.feeds.Register(r.Context(), req.Publisher, req.Journal, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := h.feeds.Subscribe(r.Context(), userID, feed.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeedResponse(feed))
}

type setSubscriptionRequest struct {
	Subscribed bool `json:"subscribed"`
}

// SetSubscription はフィードの購読状態を切り替える。
// 購読・解除のいずれも冪等に動作する。
// PUT /api/user/rss_feeds/{feedID}/subscription
func (h *FeedHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req setSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	feedID := chi.URLParam(r, "feedID")
	if req.Subscribed {
		_, err = h.feeds.Subscribe(r.Context(), userID, feedID)
	} else {
		err = h.feeds.Unsubscribe(r.Context(), userID, feedID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
