// Package article は記事リンクの状態管理のドメインロジックを提供する。
package article

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sciencefeed/internal/model"
	"github.com/hitoshi/sciencefeed/internal/repository"
)

// Service はユーザーごとの記事リンクの状態（既読・アーカイブ・削除）を操作する。
// 状態は記事本体ではなくユーザーと記事のリンクに属するため、
// あるユーザーの操作は他のユーザーの見え方に影響しない。
type Service struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *repository.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// SetRead は既読フラグを切り替える。
// 未読に戻すとread_atは解除され、ダイジェストメールの対象に復帰する。
func (s *Service) SetRead(ctx context.Context, userID, articleID string, read bool) error {
	if _, err := s.findLink(ctx, userID, articleID); err != nil {
		return err
	}
	if err := s.store.UserArticles.SetRead(ctx, userID, articleID, read); err != nil {
		return fmt.Errorf("既読状態の更新に失敗しました: %w", err)
	}
	return nil
}

// SetArchived はアーカイブフラグを切り替える。
// アーカイブした記事は読了扱いとなるため、既読フラグも同時に立てる。
func (s *Service) SetArchived(ctx context.Context, userID, articleID string, archived bool) error {
	if _, err := s.findLink(ctx, userID, articleID); err != nil {
		return err
	}
	if err := s.store.UserArticles.SetArchived(ctx, userID, articleID, archived); err != nil {
		return fmt.Errorf("アーカイブ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は記事リンクを削除済みにする（ソフトデリート）。
// 削除済みリンクは既読・アーカイブ済みとしても扱われ、
// 保持期間の経過後にクリーンアップジョブが物理削除する。
func (s *Service) Delete(ctx context.Context, userID, articleID string) error {
	if _, err := s.findLink(ctx, userID, articleID); err != nil {
		return err
	}
	if err := s.store.UserArticles.MarkDeleted(ctx, userID, articleID); err != nil {
		return fmt.Errorf("記事リンクの削除に失敗しました: %w", err)
	}
	s.logger.Info("記事リンクを削除しました",
		slog.String("user_id", userID),
		slog.String("article_id", articleID),
	)
	return nil
}

// findLink はユーザーと記事のリンクを取得する。
// 存在しない場合はARTICLE_NOT_FOUNDエラーを返す。
func (s *Service) findLink(ctx context.Context, userID, articleID string) (*model.UserArticle, error) {
	link, err := s.store.UserArticles.FindByUserAndArticle(ctx, userID, articleID)
	if err != nil {
		return nil, fmt.Errorf("記事リンクの取得に失敗しました: %w", err)
	}
	if link == nil {
		return nil, model.NewArticleNotFoundError(articleID)
	}
	return link, nil
}
