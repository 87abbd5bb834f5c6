package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sciencefeed/internal/middleware"
)

// ArticleService は記事リンク状態操作のサービスインターフェース。
type ArticleService interface {
	SetRead(ctx context.Context, userID, articleID string, read bool) error
	SetArchived(ctx context.Context, userID, articleID string, archived bool) error
	Delete(ctx context.Context, userID, articleID string) error
}

// ArticleHandler は記事リンクの状態（既読・アーカイブ・削除）の
// エンドポイントを処理する。操作対象はユーザーと記事のリンクであり、
// 記事本体や他ユーザーの見え方には影響しない。
type ArticleHandler struct {
	articles ArticleService
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(articles ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

type setReadRequest struct {
	Read bool `json:"read"`
}

// SetRead は既読フラグを切り替える。
// PUT /api/user/articles/{articleID}/read
func (h *ArticleHandler) SetRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req setReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := h.articles.SetRead(r.Context(), userID, chi.URLParam(r, "articleID"), req.Read); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setArchivedRequest struct {
	Archived bool `json:"archived"`
}

// SetArchived はアーカイブフラグを切り替える。
// PUT /api/user/articles/{articleID}/archived
func (h *ArticleHandler) SetArchived(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req setArchivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := h.articles.SetArchived(r.Context(), userID, chi.URLParam(r, "articleID"), req.Archived); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete は記事リンクを削除済みにする（ソフトデリート）。
// 物理削除は保持期間の経過後にクリーンアップジョブが行う。
// DELETE /api/user/articles/{articleID}
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	if err := h.articles.Delete(r.Context(), userID, chi.URLParam(r, "articleID")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
