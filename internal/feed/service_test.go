package feed

import (
	"context"
	"testing"

	"github.com/hitoshi/sciencefeed/internal/model"
)

// mockFeedRepo はFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	feedsByID  map[string]*model.Feed
	feedsByURL map[string]*model.Feed
	created    []*model.Feed
	createErr  error
}

func (m *mockFeedRepo) FindByID(_ context.Context, id string) (*model.Feed, error) {
	return m.feedsByID[id], nil
}

func (m *mockFeedRepo) FindByURL(_ context.Context, url string) (*model.Feed, error) {
	return m.feedsByURL[url], nil
}

func (m *mockFeedRepo) Create(_ context.Context, feed *model.Feed) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, feed)
	return nil
}

func (m *mockFeedRepo) ListSubscribed(_ context.Context) ([]*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) ListByUserID(_ context.Context, _ string) ([]*model.Feed, error) {
	return nil, nil
}

// mockSubscriptionRepo はSubscriptionRepositoryのテスト用モック。
type mockSubscriptionRepo struct {
	existing map[string]*model.Subscription // key: userID + "/" + feedID
	created  []*model.Subscription
	deleted  []string
}

func (m *mockSubscriptionRepo) FindByUserAndFeed(_ context.Context, userID, feedID string) (*model.Subscription, error) {
	return m.existing[userID+"/"+feedID], nil
}

func (m *mockSubscriptionRepo) Create(_ context.Context, sub *model.Subscription) error {
	m.created = append(m.created, sub)
	return nil
}

func (m *mockSubscriptionRepo) Delete(_ context.Context, userID, feedID string) error {
	m.deleted = append(m.deleted, userID+"/"+feedID)
	return nil
}

func (m *mockSubscriptionRepo) ListByUserID(_ context.Context, _ string) ([]*model.Subscription, error) {
	return nil, nil
}

// mockDetector はFeedDetectorのテスト用モック。
type mockDetector struct {
	detectedURL string
	err         error
}

func (m *mockDetector) DetectFeedURL(_ context.Context, _ string) (string, error) {
	return m.detectedURL, m.err
}

func TestRegister_NewFeed(t *testing.T) {
	feedRepo := &mockFeedRepo{feedsByURL: map[string]*model.Feed{}}
	svc := NewService(feedRepo, &mockSubscriptionRepo{}, &mockDetector{detectedURL: "https://pubs.acs.org/feed.rss"})

	feed, err := svc.Register(context.Background(), "American Chemical Society", "JACS", "https://pubs.acs.org/journal/jacsat")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if feed.URL != "https://pubs.acs.org/feed.rss" {
		t.Errorf("feed URL = %q, want detected URL", feed.URL)
	}
	if feed.Publisher != "American Chemical Society" || feed.Journal != "JACS" {
		t.Errorf("metadata not preserved: %+v", feed)
	}
	if feed.ID == "" {
		t.Error("feed ID must be generated")
	}
	if len(feedRepo.created) != 1 {
		t.Errorf("created %d feeds, want 1", len(feedRepo.created))
	}
}

func TestRegister_DuplicateURL(t *testing.T) {
	existing := &model.Feed{ID: "feed-1", URL: "https://pubs.acs.org/feed.rss"}
	feedRepo := &mockFeedRepo{
		feedsByURL: map[string]*model.Feed{existing.URL: existing},
	}
	svc := NewService(feedRepo, &mockSubscriptionRepo{}, &mockDetector{detectedURL: existing.URL})

	_, err := svc.Register(context.Background(), "ACS", "JACS", existing.URL)
	assertErrorCode(t, err, model.ErrCodeDuplicateFeed)
	if len(feedRepo.created) != 0 {
		t.Error("duplicate registration must not create a feed")
	}
}

func TestRegister_DetectorError(t *testing.T) {
	svc := NewService(
		&mockFeedRepo{feedsByURL: map[string]*model.Feed{}},
		&mockSubscriptionRepo{},
		&mockDetector{err: model.NewFeedNotDetectedError("https://example.com")},
	)

	_, err := svc.Register(context.Background(), "ACS", "JACS", "https://example.com")
	assertErrorCode(t, err, model.ErrCodeFeedNotDetected)
}

func TestSubscribe_NewSubscription(t *testing.T) {
	feed := &model.Feed{ID: "feed-1", URL: "https://example.com/feed.rss"}
	feedRepo := &mockFeedRepo{feedsByID: map[string]*model.Feed{feed.ID: feed}}
	subRepo := &mockSubscriptionRepo{existing: map[string]*model.Subscription{}}
	svc := NewService(feedRepo, subRepo, &mockDetector{})

	sub, err := svc.Subscribe(context.Background(), "user-1", "feed-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.UserID != "user-1" || sub.FeedID != "feed-1" {
		t.Errorf("unexpected subscription: %+v", sub)
	}
	if len(subRepo.created) != 1 {
		t.Errorf("created %d subscriptions, want 1", len(subRepo.created))
	}
}

func TestSubscribe_AlreadySubscribedIsIdempotent(t *testing.T) {
	feed := &model.Feed{ID: "feed-1"}
	existing := &model.Subscription{ID: "sub-1", UserID: "user-1", FeedID: "feed-1"}
	feedRepo := &mockFeedRepo{feedsByID: map[string]*model.Feed{feed.ID: feed}}
	subRepo := &mockSubscriptionRepo{
		existing: map[string]*model.Subscription{"user-1/feed-1": existing},
	}
	svc := NewService(feedRepo, subRepo, &mockDetector{})

	sub, err := svc.Subscribe(context.Background(), "user-1", "feed-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.ID != "sub-1" {
		t.Errorf("existing subscription must be returned, got %+v", sub)
	}
	if len(subRepo.created) != 0 {
		t.Error("re-subscribe must not create a new subscription")
	}
}

func TestSubscribe_FeedNotFound(t *testing.T) {
	svc := NewService(&mockFeedRepo{feedsByID: map[string]*model.Feed{}}, &mockSubscriptionRepo{}, &mockDetector{})

	_, err := svc.Subscribe(context.Background(), "user-1", "missing-feed")
	assertErrorCode(t, err, model.ErrCodeFeedNotFound)
}

func TestUnsubscribe(t *testing.T) {
	subRepo := &mockSubscriptionRepo{}
	svc := NewService(&mockFeedRepo{}, subRepo, &mockDetector{})

	if err := svc.Unsubscribe(context.Background(), "user-1", "feed-1"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if len(subRepo.deleted) != 1 || subRepo.deleted[0] != "user-1/feed-1" {
		t.Errorf("unexpected deletions: %v", subRepo.deleted)
	}
}
