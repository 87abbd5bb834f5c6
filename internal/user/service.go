// Package user はユーザー登録のドメインロジックを提供する。
// 認証・トークン発行は外部コラボレーターの責務であり、本パッケージは
// パイプラインとダイジェスト送信の対象となるユーザーの管理のみを行う。
package user

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

// defaultMaxArticles はダイジェストメール1通あたりの記事数の既定値。
const defaultMaxArticles = 20

// Service はユーザー登録のサービス層。
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

// Register は新しいユーザーをアクティブ状態で登録する。
// ユーザー名またはメールアドレスが既に使用されている場合は
// DUPLICATE_USERエラーを返す。登録直後から取り込みとダイジェストの
// 対象となる。
func (s *Service) Register(ctx context.Context, username, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("ユーザー名とメールアドレスは必須です")
	}

	existing, err := s.store.Users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUserError(username, email)
	}

	now := time.Now()
	u := &model.User{
		ID:                  uuid.New().String(),
		Username:            username,
		Email:               email,
		Active:              true,
		SendFeedEmails:      true,
		MaxArticlesPerEmail: defaultMaxArticles,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.Users.Create(ctx, u); err != nil {
		// 検索と作成の間に同名が登録された場合は重複として扱う
		if repository.IsUniqueViolation(err) {
			return nil, model.NewDuplicateUserError(username, email)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーを登録しました",
		slog.String("user_id", u.ID),
		slog.String("username", username),
	)
	return u, nil
}
