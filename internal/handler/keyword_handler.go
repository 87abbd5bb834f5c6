package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sciencefeed/internal/middleware"
	"github.com/hitoshi/sciencefeed/internal/model"
)

// KeywordService はキーワード管理のサービスインターフェース。
type KeywordService interface {
	Add(ctx context.Context, userID, name string) (*model.Keyword, error)
	SetActive(ctx context.Context, userID, keywordID string, active bool) (*model.Keyword, error)
	Delete(ctx context.Context, userID, keywordID string) error
	List(ctx context.Context, userID string) ([]*model.Keyword, error)
}

// KeywordHandler はキーワードCRUDエンドポイントを処理する。
type KeywordHandler struct {
	keywords KeywordService
}

// NewKeywordHandler はKeywordHandlerを生成する。
func NewKeywordHandler(keywords KeywordService) *KeywordHandler {
	return &KeywordHandler{keywords: keywords}
}

type keywordResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toKeywordResponse(kw *model.Keyword) keywordResponse {
	return keywordResponse{
		ID:        kw.ID,
		Name:      kw.Name,
		Active:    kw.Active,
		CreatedAt: kw.CreatedAt,
	}
}

type listKeywordsResponse struct {
	Keywords []keywordResponse `json:"keywords"`
}

// List はユーザーの全キーワードを返す。
// GET /api/user/keywords
func (h *KeywordHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	kws, err := h.keywords.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]keywordResponse, 0, len(kws))
	for _, kw := range kws {
		out = append(out, toKeywordResponse(kw))
	}
	writeJSON(w, http.StatusOK, listKeywordsResponse{Keywords: out})
}

type addKeywordRequest struct {
	Name string `json:"name"`
}

// Add は新しいキーワードを登録する。
// POST /api/user/keywords
func (h *KeywordHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req addKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	kw, err := h.keywords.Add(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toKeywordResponse(kw))
}

type setKeywordActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive はキーワードの有効/無効を切り替える。
// PUT /api/user/keywords/{keywordID}/active
func (h *KeywordHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req setKeywordActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	kw, err := h.keywords.SetActive(r.Context(), userID, chi.URLParam(r, "keywordID"), req.Active)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toKeywordResponse(kw))
}

// Delete はキーワードを削除する。関連するマッチ記録もあわせて消える。
// DELETE /api/user/keywords/{keywordID}
func (h *KeywordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	if err := h.keywords.Delete(r.Context(), userID, chi.URLParam(r, "keywordID")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
