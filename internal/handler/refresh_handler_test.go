package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/sciencefeed/internal/middleware"
	"github.com/hitoshi/sciencefeed/internal/model"
)

type mockPipeline struct {
	err        error
	runCount   int
	lastUserID string
}

func (m *mockPipeline) RunUser(_ context.Context, userID string) error {
	m.runCount++
	m.lastUserID = userID
	return m.err
}

type mockRefreshUsers struct {
	user      *model.User
	findErr   error
	updated   []time.Time
	updateErr error
}

func (m *mockRefreshUsers) FindByID(_ context.Context, _ string) (*model.User, error) {
	return m.user, m.findErr
}

func (m *mockRefreshUsers) UpdateLastRSSUpdate(_ context.Context, _ string, t time.Time) error {
	m.updated = append(m.updated, t)
	return m.updateErr
}

func doRefresh(h *RefreshHandler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/user/rss_feeds/refresh", nil)
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	return body
}

func TestRefresh_RunsPipelineAndRecordsTimestamp(t *testing.T) {
	pipeline := &mockPipeline{}
	users := &mockRefreshUsers{user: &model.User{ID: "u1", Active: true}}
	h := NewRefreshHandler(pipeline, users, 5*time.Minute)

	rec := doRefresh(h, "u1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if pipeline.runCount != 1 || pipeline.lastUserID != "u1" {
		t.Errorf("pipeline must run once for u1, got count=%d user=%q", pipeline.runCount, pipeline.lastUserID)
	}
	if len(users.updated) != 1 {
		t.Errorf("UpdateLastRSSUpdate must be called once, got %d", len(users.updated))
	}

	var body refreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q, want ok", body.Status)
	}
}

func TestRefresh_CooldownReturns429WithRemainingMinutes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Minute)
	pipeline := &mockPipeline{}
	users := &mockRefreshUsers{user: &model.User{ID: "u1", LastRSSUpdate: &last}}
	h := NewRefreshHandler(pipeline, users, 5*time.Minute)
	h.now = func() time.Time { return now }

	rec := doRefresh(h, "u1")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if pipeline.runCount != 0 {
		t.Error("pipeline must not run during cooldown")
	}
	if len(users.updated) != 0 {
		t.Error("last_rss_update must not change during cooldown")
	}

	body := decodeErrorBody(t, rec)
	if body.Code != model.ErrCodeRefreshCooldown {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRefreshCooldown)
	}
	// 残り3分をメッセージに含む（5分 - 経過2分）
	if want := "3分"; !strings.Contains(body.Message, want) {
		t.Errorf("message %q must contain %q", body.Message, want)
	}
}

func TestRefresh_CooldownExpiredAllowsRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-6 * time.Minute)
	pipeline := &mockPipeline{}
	users := &mockRefreshUsers{user: &model.User{ID: "u1", LastRSSUpdate: &last}}
	h := NewRefreshHandler(pipeline, users, 5*time.Minute)
	h.now = func() time.Time { return now }

	rec := doRefresh(h, "u1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if pipeline.runCount != 1 {
		t.Errorf("pipeline runCount = %d, want 1", pipeline.runCount)
	}
}

func TestRefresh_FirstRefreshHasNoCooldown(t *testing.T) {
	pipeline := &mockPipeline{}
	users := &mockRefreshUsers{user: &model.User{ID: "u1"}} // LastRSSUpdate = nil
	h := NewRefreshHandler(pipeline, users, 5*time.Minute)

	if rec := doRefresh(h, "u1"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRefresh_UnknownUserReturns404(t *testing.T) {
	h := NewRefreshHandler(&mockPipeline{}, &mockRefreshUsers{user: nil}, 5*time.Minute)

	rec := doRefresh(h, "nobody")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if body := decodeErrorBody(t, rec); body.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUserNotFound)
	}
}

func TestRefresh_MissingUserIDReturns401(t *testing.T) {
	h := NewRefreshHandler(&mockPipeline{}, &mockRefreshUsers{}, 5*time.Minute)

	if rec := doRefresh(h, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_PipelineFailureReturns500(t *testing.T) {
	pipeline := &mockPipeline{err: errors.New("db down")}
	users := &mockRefreshUsers{user: &model.User{ID: "u1"}}
	h := NewRefreshHandler(pipeline, users, 5*time.Minute)

	rec := doRefresh(h, "u1")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if len(users.updated) != 0 {
		t.Error("last_rss_update must not change when the pipeline fails")
	}
}

func TestRefresh_TimestampUpdateFailureStillReturns200(t *testing.T) {
	pipeline := &mockPipeline{}
	users := &mockRefreshUsers{user: &model.User{ID: "u1"}, updateErr: errors.New("db down")}
	h := NewRefreshHandler(pipeline, users, 5*time.Minute)

	if rec := doRefresh(h, "u1"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
