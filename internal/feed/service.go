package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sciencefeed/internal/model"
	"github.com/hitoshi/sciencefeed/internal/repository"
)

// FeedDetector はフィード検出のインターフェース。
// テスタビリティのためDetectorを抽象化する。
type FeedDetector interface {
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Service はフィード登録・購読管理のサービス層。
// 検出 → 重複チェック → フィード保存 → 購読作成のフローを統括する。
type Service struct {
	feedRepo repository.FeedRepository
	subRepo  repository.SubscriptionRepository
	detector FeedDetector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	feedRepo repository.FeedRepository,
	subRepo repository.SubscriptionRepository,
	detector FeedDetector,
) *Service {
	return &Service{
		feedRepo: feedRepo,
		subRepo:  subRepo,
		detector: detector,
	}
}

// Register はURLからフィードを検出してカタログに登録する。
// publisherとjournalは出版社名と学術誌名のメタデータ。
// 入力URLが論文一覧ページの場合は自動検出でフィードURLに解決される。
// 同一URLのフィードが既に存在する場合はDUPLICATE_FEEDエラーを返す。
func (s *Service) Register(ctx context.Context, publisher, journal, inputURL string) (*model.Feed, error) {
	feedURL, err := s.detector.DetectFeedURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.feedRepo.FindByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateFeedError(feedURL)
	}

	feed := &model.Feed{
		ID:        uuid.New().String(),
		Publisher: publisher,
		Journal:   journal,
		URL:       feedURL,
		CreatedAt: time.Now(),
	}

	if err := s.feedRepo.Create(ctx, feed); err != nil {
		// 検出と保存の間に同一URLが登録された場合は重複として扱う
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateFeedError(feedURL)
		}
		return nil, fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}

	return feed, nil
}

// Subscribe はユーザーをフィードの購読者として登録する。
// 既に購読済みの場合は既存の購読を返す（冪等）。
func (s *Service) Subscribe(ctx context.Context, userID, feedID string) (*model.Subscription, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}

	existing, err := s.subRepo.FindByUserAndFeed(ctx, userID, feedID)
	if err != nil {
		return nil, fmt.Errorf("購読の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	sub := &model.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		FeedID:    feedID,
		CreatedAt: time.Now(),
	}

	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("購読の作成に失敗しました: %w", err)
	}

	return sub, nil
}

// Unsubscribe はユーザーのフィード購読を解除する。
// 購読していない場合も成功として扱う（冪等）。
func (s *Service) Unsubscribe(ctx context.Context, userID, feedID string) error {
	if err := s.subRepo.Delete(ctx, userID, feedID); err != nil {
		return fmt.Errorf("購読の解除に失敗しました: %w", err)
	}
	return nil
}

// ListForUser はユーザーが購読しているフィードの一覧を返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*model.Feed, error) {
	return s.feedRepo.ListByUserID(ctx, userID)
}
