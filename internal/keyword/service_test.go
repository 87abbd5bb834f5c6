package keyword

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/sciencefeed/internal/model"
	"github.com/hitoshi/sciencefeed/internal/repository"
)

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

// memKeywordRepo はKeywordRepositoryのインメモリモック。
type memKeywordRepo struct {
	keywords map[string]*model.Keyword // id -> keyword
}

func newMemKeywordRepo() *memKeywordRepo {
	return &memKeywordRepo{keywords: map[string]*model.Keyword{}}
}

func (m *memKeywordRepo) FindByID(_ context.Context, id string) (*model.Keyword, error) {
	return m.keywords[id], nil
}

func (m *memKeywordRepo) FindByUserAndName(_ context.Context, userID, name string) (*model.Keyword, error) {
	for _, kw := range m.keywords {
		if kw.UserID == userID && kw.Name == name {
			return kw, nil
		}
	}
	return nil, nil
}

func (m *memKeywordRepo) ListByUserID(_ context.Context, userID string) ([]*model.Keyword, error) {
	var out []*model.Keyword
	for _, kw := range m.keywords {
		if kw.UserID == userID {
			out = append(out, kw)
		}
	}
	return out, nil
}

func (m *memKeywordRepo) ListActiveByUserID(_ context.Context, userID string) ([]*model.Keyword, error) {
	var out []*model.Keyword
	for _, kw := range m.keywords {
		if kw.UserID == userID && kw.Active {
			out = append(out, kw)
		}
	}
	return out, nil
}

func (m *memKeywordRepo) Create(_ context.Context, kw *model.Keyword) error {
	m.keywords[kw.ID] = kw
	return nil
}

func (m *memKeywordRepo) SetActive(_ context.Context, id string, active bool) error {
	if kw, found := m.keywords[id]; found {
		kw.Active = active
	}
	return nil
}

func (m *memKeywordRepo) Delete(_ context.Context, id string) error {
	delete(m.keywords, id)
	return nil
}

// stubUserArticleRepo はDeleteOrphansの呼び出しを記録するスタブ。
type stubUserArticleRepo struct {
	orphansRemoved  int64
	deleteOrphanHit int
}

func (m *stubUserArticleRepo) FindByUserAndArticle(_ context.Context, _, _ string) (*model.UserArticle, error) {
	return nil, nil
}
func (m *stubUserArticleRepo) Create(_ context.Context, _ *model.UserArticle) error { return nil }
func (m *stubUserArticleRepo) AddKeywords(_ context.Context, _ string, _ []string) error {
	return nil
}
func (m *stubUserArticleRepo) SetRead(_ context.Context, _, _ string, _ bool) error { return nil }
func (m *stubUserArticleRepo) SetArchived(_ context.Context, _, _ string, _ bool) error {
	return nil
}
func (m *stubUserArticleRepo) MarkDeleted(_ context.Context, _, _ string) error { return nil }
func (m *stubUserArticleRepo) ListUnreadDigest(_ context.Context, _ string, _ int) ([]model.DigestArticle, error) {
	return nil, nil
}
func (m *stubUserArticleRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
func (m *stubUserArticleRepo) DeleteOrphans(_ context.Context) (int64, error) {
	m.deleteOrphanHit++
	return m.orphansRemoved, nil
}

type passTxRunner struct {
	store *repository.Store
}

func (r *passTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, s *repository.Store) error) error {
	return fn(ctx, r.store)
}

func newTestService() (*Service, *memKeywordRepo, *stubUserArticleRepo) {
	keywords := newMemKeywordRepo()
	userArticles := &stubUserArticleRepo{}
	store := &repository.Store{Keywords: keywords, UserArticles: userArticles}
	var buf bytes.Buffer
	svc := NewService(store, &passTxRunner{store: store}, newTestLogger(&buf))
	return svc, keywords, userArticles
}

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

func TestAdd_NormalizesAndCreates(t *testing.T) {
	svc, repo, _ := newTestService()

	kw, err := svc.Add(context.Background(), "u1", "  Graphene Oxide  ")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if kw.Name != "graphene oxide" {
		t.Errorf("name = %q, want normalized lowercase", kw.Name)
	}
	if !kw.Active {
		t.Error("new keyword must be active")
	}
	if len(repo.keywords) != 1 {
		t.Errorf("stored %d keywords, want 1", len(repo.keywords))
	}
}

func TestAdd_EmptyKeywordRejected(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Add(context.Background(), "u1", "   ")
	assertErrorCode(t, err, model.ErrCodeEmptyKeywordSet)
}

func TestAdd_DuplicateRejected(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Add(context.Background(), "u1", "graphene"); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	// 大文字小文字・空白の違いは正規化後に同名とみなされる
	_, err := svc.Add(context.Background(), "u1", " GRAPHENE ")
	assertErrorCode(t, err, model.ErrCodeDuplicateKeyword)
}

func TestAdd_SameNameForDifferentUsers(t *testing.T) {
	svc, repo, _ := newTestService()

	if _, err := svc.Add(context.Background(), "u1", "graphene"); err != nil {
		t.Fatalf("Add for u1 failed: %v", err)
	}
	if _, err := svc.Add(context.Background(), "u2", "graphene"); err != nil {
		t.Fatalf("Add for u2 failed: %v", err)
	}
	if len(repo.keywords) != 2 {
		t.Errorf("stored %d keywords, want 2", len(repo.keywords))
	}
}

func TestSetActive_Toggle(t *testing.T) {
	svc, _, _ := newTestService()

	kw, err := svc.Add(context.Background(), "u1", "graphene")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	toggled, err := svc.SetActive(context.Background(), "u1", kw.ID, false)
	if err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if toggled.Active {
		t.Error("keyword must be inactive after toggle")
	}

	toggled, err = svc.SetActive(context.Background(), "u1", kw.ID, true)
	if err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if !toggled.Active {
		t.Error("keyword must be active after second toggle")
	}
}

func TestSetActive_OtherUsersKeywordNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	kw, err := svc.Add(context.Background(), "u1", "graphene")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	_, err = svc.SetActive(context.Background(), "u2", kw.ID, false)
	assertErrorCode(t, err, model.ErrCodeKeywordNotFound)
}

func TestDelete_RemovesKeywordAndOrphans(t *testing.T) {
	svc, repo, userArticles := newTestService()
	userArticles.orphansRemoved = 3

	kw, err := svc.Add(context.Background(), "u1", "graphene")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := svc.Delete(context.Background(), "u1", kw.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(repo.keywords) != 0 {
		t.Error("keyword must be removed")
	}
	if userArticles.deleteOrphanHit != 1 {
		t.Errorf("DeleteOrphans called %d times, want 1", userArticles.deleteOrphanHit)
	}
}

func TestDelete_UnknownKeyword(t *testing.T) {
	svc, _, userArticles := newTestService()

	err := svc.Delete(context.Background(), "u1", "no-such-id")
	assertErrorCode(t, err, model.ErrCodeKeywordNotFound)
	if userArticles.deleteOrphanHit != 0 {
		t.Error("orphan cleanup must not run when keyword lookup fails")
	}
}
