package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// TestPostgresRepos_ImplementInterfaces は各Postgres実装が対応する
// リポジトリインターフェースを満たすことをコンパイル時に検証する。
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ FeedRepository = (*PostgresFeedRepo)(nil)
	var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
	var _ KeywordRepository = (*PostgresKeywordRepo)(nil)
	var _ ArticleRepository = (*PostgresArticleRepo)(nil)
	var _ UserArticleRepository = (*PostgresUserArticleRepo)(nil)
	var _ TxRunner = (*SQLTxRunner)(nil)
}

func TestIsUniqueViolation_PqUniqueError(t *testing.T) {
	err := &pq.Error{Code: "23505"}
	if !IsUniqueViolation(err) {
		t.Error("IsUniqueViolation(23505) = false, want true")
	}
}

func TestIsUniqueViolation_WrappedError(t *testing.T) {
	inner := &pq.Error{Code: "23505"}
	wrapped := fmt.Errorf("記事の作成に失敗しました: %w", inner)
	if !IsUniqueViolation(wrapped) {
		t.Error("IsUniqueViolation(wrapped 23505) = false, want true")
	}
}

func TestIsUniqueViolation_OtherErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"plain error", errors.New("boom")},
		{"foreign key violation", &pq.Error{Code: "23503"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if IsUniqueViolation(tc.err) {
				t.Errorf("IsUniqueViolation(%v) = true, want false", tc.err)
			}
		})
	}
}
