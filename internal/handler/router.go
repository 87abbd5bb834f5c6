package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sciencefeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// ヘルスチェック
	DB Pinger

	// メトリクス公開エンドポイント
	MetricsHandler http.Handler

	// オンデマンド更新
	Pipeline RefresherService
	Users    RefreshUserRepository
	Cooldown time.Duration

	// リソース操作
	Keywords KeywordService
	Articles ArticleService
	Feeds    FeedService
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → IdentityMiddleware → RateLimitMiddleware
//
// /health と /metrics は認証不要でミドルウェアチェーンの外側（Recovery/Loggingのみ）に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	healthHandler := NewHealthHandler(deps.DB)
	refreshHandler := NewRefreshHandler(deps.Pipeline, deps.Users, deps.Cooldown)
	keywordHandler := NewKeywordHandler(deps.Keywords)
	articleHandler := NewArticleHandler(deps.Articles)
	feedHandler := NewFeedHandler(deps.Feeds)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	// --- ユーザーIDが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware())
		r.Use(deps.RateLimiter.Middleware())

		r.Get("/api/user/keywords", keywordHandler.List)
		r.Post("/api/user/keywords", keywordHandler.Add)
		r.Put("/api/user/keywords/{keywordID}/active", keywordHandler.SetActive)
		r.Delete("/api/user/keywords/{keywordID}", keywordHandler.Delete)

		r.Put("/api/user/articles/{articleID}/read", articleHandler.SetRead)
		r.Put("/api/user/articles/{articleID}/archived", articleHandler.SetArchived)
		r.Delete("/api/user/articles/{articleID}", articleHandler.Delete)

		r.Get("/api/user/rss_feeds", feedHandler.List)
		r.Post("/api/user/rss_feeds", feedHandler.Add)
		r.Put("/api/user/rss_feeds/{feedID}/subscription", feedHandler.SetSubscription)
		r.Post("/api/user/rss_feeds/refresh", refreshHandler.Refresh)
	})

	return r
}
