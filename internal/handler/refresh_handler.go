// Package handler はHTTP APIのハンドラーを提供する。
// 認証は上流のゲートウェイに委ねており、ユーザーIDはX-User-IDヘッダーで受け取る。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/hitoshi/sciencefeed/internal/middleware"
	"github.com/hitoshi/sciencefeed/internal/model"
)

// RefresherService は単一ユーザーの取り込みパイプラインの実行インターフェース。
type RefresherService interface {
	RunUser(ctx context.Context, userID string) error
}

// RefreshUserRepository はクールダウン判定に必要なユーザー操作のインターフェース。
// repository.UserRepositoryの部分集合。
type RefreshUserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	UpdateLastRSSUpdate(ctx context.Context, userID string, t time.Time) error
}

// RefreshHandler はオンデマンドのフィード更新エンドポイントを処理する。
type RefreshHandler struct {
	pipeline RefresherService
	users    RefreshUserRepository
	cooldown time.Duration
	now      func() time.Time
}

// NewRefreshHandler はRefreshHandlerを生成する。
func NewRefreshHandler(pipeline RefresherService, users RefreshUserRepository, cooldown time.Duration) *RefreshHandler {
	return &RefreshHandler{
		pipeline: pipeline,
		users:    users,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// refreshResponse はフィード更新成功時のレスポンス。
type refreshResponse struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Refresh はユーザーの購読フィードを即時に取り込む。
// POST /api/user/rss_feeds/refresh
//
// 前回更新からクールダウン期間が経過していない場合は429を返し、
// 残り分数をエラーメッセージに含める。
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	now := h.now()
	if user.LastRSSUpdate != nil {
		elapsed := now.Sub(*user.LastRSSUpdate)
		if elapsed < h.cooldown {
			remaining := int(math.Ceil((h.cooldown - elapsed).Minutes()))
			middleware.WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRefreshCooldownError(remaining))
			return
		}
	}

	if err := h.pipeline.RunUser(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.users.UpdateLastRSSUpdate(r.Context(), userID, now); err != nil {
		// 取り込み自体は成功しているため、更新時刻の記録失敗はログのみ
		slog.Error("last_rss_updateの更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Status:    "ok",
		UpdatedAt: now,
	})
}

// --- ヘルパー関数 ---

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "X-User-IDヘッダーを設定してください。",
	}
}

func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディが不正です。",
		Category: "validation",
		Action:   "リクエスト形式を確認してください。",
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// エラーレスポンスの形式はmiddleware.WriteErrorResponseに一本化している。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidURL, model.ErrCodeEmptyKeywordSet:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDuplicateFeed, model.ErrCodeDuplicateKeyword, model.ErrCodeDuplicateUser:
		return http.StatusConflict
	case model.ErrCodeKeywordNotFound, model.ErrCodeArticleNotFound,
		model.ErrCodeUserNotFound, model.ErrCodeFeedNotFound:
		return http.StatusNotFound
	case model.ErrCodeRefreshCooldown:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
