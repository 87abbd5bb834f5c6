// Package keyword はキーワード管理のドメインロジックを提供する。
package keyword

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sciencefeed/internal/model"
	"github.com/hitoshi/sciencefeed/internal/repository"
)

// Service はキーワードの登録・切り替え・削除を行うサービス層。
// 削除は関連リンクの後始末を含むためトランザクション境界の管理が必要となる。
type Service struct {
	store    *repository.Store
	txRunner repository.TxRunner
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *repository.Store, txRunner repository.TxRunner, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		txRunner: txRunner,
		logger:   logger,
	}
}

// normalizeName はキーワード名を正規化する。
// マッチングが大文字小文字を区別しないため、小文字に揃えて保存する。
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add は新しいキーワードを登録する。
// 名前は小文字に正規化され、同名のキーワードが既にある場合は
// DUPLICATE_KEYWORDエラーを返す。登録はアクティブ状態で行われ、
// 以降の取り込みから（遡及せず）マッチングに使用される。
func (s *Service) Add(ctx context.Context, userID, name string) (*model.Keyword, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, model.NewEmptyKeywordError()
	}

	existing, err := s.store.Keywords.FindByUserAndName(ctx, userID, normalized)
	if err != nil {
		return nil, fmt.Errorf("キーワードの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateKeywordError(normalized)
	}

	kw := &model.Keyword{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      normalized,
		Active:    true,
		CreatedAt: time.Now(),
	}

	if err := s.store.Keywords.Create(ctx, kw); err != nil {
		// 検索と作成の間に同名が登録された場合は重複として扱う
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateKeywordError(normalized)
		}
		return nil, fmt.Errorf("キーワードの作成に失敗しました: %w", err)
	}

	s.logger.Info("キーワードを登録しました",
		slog.String("user_id", userID),
		slog.String("keyword", normalized),
	)
	return kw, nil
}

// SetActive はキーワードの有効/無効を切り替える。
// 無効化されたキーワードはマッチングから除外されるが、
// 過去のマッチ記録は保持される。
func (s *Service) SetActive(ctx context.Context, userID, keywordID string, active bool) (*model.Keyword, error) {
	kw, err := s.findOwned(ctx, s.store, userID, keywordID)
	if err != nil {
		return nil, err
	}

	if kw.Active == active {
		return kw, nil
	}

	if err := s.store.Keywords.SetActive(ctx, keywordID, active); err != nil {
		return nil, fmt.Errorf("キーワードの切り替えに失敗しました: %w", err)
	}

	kw.Active = active
	return kw, nil
}

// Delete はキーワードを削除する。
// 関連するマッチ記録はCASCADEで削除され、その結果マッチキーワードが
// 1件も残らなくなった記事リンクも同一トランザクション内で削除される。
func (s *Service) Delete(ctx context.Context, userID, keywordID string) error {
	return s.txRunner.RunInTx(ctx, func(ctx context.Context, st *repository.Store) error {
		kw, err := s.findOwned(ctx, st, userID, keywordID)
		if err != nil {
			return err
		}

		if err := st.Keywords.Delete(ctx, keywordID); err != nil {
			return fmt.Errorf("キーワードの削除に失敗しました: %w", err)
		}

		removed, err := st.UserArticles.DeleteOrphans(ctx)
		if err != nil {
			return fmt.Errorf("孤立リンクの削除に失敗しました: %w", err)
		}

		s.logger.Info("キーワードを削除しました",
			slog.String("user_id", userID),
			slog.String("keyword", kw.Name),
			slog.Int64("orphan_links_removed", removed),
		)
		return nil
	})
}

// List はユーザーの全キーワードを返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Keyword, error) {
	return s.store.Keywords.ListByUserID(ctx, userID)
}

// findOwned は指定ユーザーが所有するキーワードを取得する。
// 存在しない場合、他ユーザーの所有である場合はKEYWORD_NOT_FOUNDエラーを返す。
func (s *Service) findOwned(ctx context.Context, st *repository.Store, userID, keywordID string) (*model.Keyword, error) {
	kw, err := st.Keywords.FindByID(ctx, keywordID)
	if err != nil {
		return nil, fmt.Errorf("キーワードの取得に失敗しました: %w", err)
	}
	if kw == nil || kw.UserID != userID {
		return nil, model.NewKeywordNotFoundError(keywordID)
	}
	return kw, nil
}
