// Package digest はダイジェストメールの組み立てと送信を提供する。
package digest

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/sciencefeed/internal/mailer"
	"github.com/hitoshi/sciencefeed/internal/model"
	"github.com/hitoshi/sciencefeed/internal/repository"
)

//go:embed templates/digest.html.tmpl
var templateFS embed.FS

var digestTemplate = template.Must(template.ParseFS(templateFS, "templates/digest.html.tmpl"))

// defaultMaxArticles はユーザー設定が未指定の場合の1通あたりの記事数上限。
const defaultMaxArticles = 20

// DigestMetrics はダイジェスト送信のメトリクス記録インターフェース。
type DigestMetrics interface {
	RecordDigestSent()
	RecordDigestFailed()
}

// templateData はダイジェストメールのテンプレートに渡すデータ。
type templateData struct {
	Username     string
	Articles     []model.DigestArticle
	DashboardURL string
}

// Sender はダイジェストメールの送信ジョブを実行する。
// 送信対象は「アクティブ、メール配信が有効、未読かつ未アーカイブの記事あり」の
// 全条件を満たすユーザーで、ユーザーごとに1通を送信する。
// semaphoreパターンで並列数を制御し、rate.Limiterで送信レートを抑える。
type Sender struct {
	store          *repository.Store
	mailer         mailer.Mailer
	metrics        DigestMetrics
	logger         *slog.Logger
	limiter        *rate.Limiter
	dashboardURL   string
	maxConcurrency int
}

// NewSender はSenderの新しいインスタンスを生成する。
// sendIntervalは送信間の最小間隔で、SMTPリレーの流量制限に合わせて設定する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewSender(
	store *repository.Store,
	m mailer.Mailer,
	digestMetrics DigestMetrics,
	logger *slog.Logger,
	maxConcurrency int,
	sendInterval time.Duration,
	dashboardURL string,
) *Sender {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Sender{
		store:          store,
		mailer:         m,
		metrics:        digestMetrics,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Every(sendInterval), 1),
		dashboardURL:   dashboardURL,
		maxConcurrency: maxConcurrency,
	}
}

// RunOnce は送信対象ユーザーを取得し、各ユーザーにダイジェストメールを送信する。
// 個別ユーザーの送信失敗はログとメトリクスに記録して処理を継続する。
func (s *Sender) RunOnce(ctx context.Context) error {
	start := time.Now()

	users, err := s.store.Users.ListDigestRecipients(ctx)
	if err != nil {
		return fmt.Errorf("送信対象ユーザーの取得に失敗しました: %w", err)
	}
	if len(users) == 0 {
		s.logger.Info("ダイジェストメールの送信対象ユーザーはいません")
		return nil
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent, failed := 0, 0

	for _, user := range users {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(u *model.User) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.limiter.Wait(ctx); err != nil {
				s.metrics.RecordDigestFailed()
				s.logger.Error("送信レート制限の待機が中断されました",
					slog.String("user_id", u.ID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			delivered, err := s.sendToUser(ctx, u)
			if err != nil {
				s.metrics.RecordDigestFailed()
				s.logger.Error("ダイジェストメールの送信に失敗しました",
					slog.String("user_id", u.ID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			if !delivered {
				return
			}

			s.metrics.RecordDigestSent()
			mu.Lock()
			sent++
			mu.Unlock()
		}(user)
	}

	wg.Wait()

	s.logger.Info("ダイジェスト送信サイクルが完了しました",
		slog.Int("recipients", len(users)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// sendToUser は1ユーザー分のダイジェストメールを組み立てて送信する。
// 未読・未アーカイブの記事をadded_atの古い順に上限件数まで含める。
// 実際に送信した場合はtrueを返す。
func (s *Sender) sendToUser(ctx context.Context, user *model.User) (bool, error) {
	limit := user.MaxArticlesPerEmail
	if limit <= 0 {
		limit = defaultMaxArticles
	}

	articles, err := s.store.UserArticles.ListUnreadDigest(ctx, user.ID, limit)
	if err != nil {
		return false, fmt.Errorf("未読記事の取得に失敗しました: %w", err)
	}
	if len(articles) == 0 {
		// 対象ユーザーの選定と本文組み立ての間に記事が既読化された場合
		s.logger.Info("未読記事がないため送信をスキップします",
			slog.String("user_id", user.ID),
		)
		return false, nil
	}

	body, err := s.render(user, articles)
	if err != nil {
		return false, fmt.Errorf("メール本文の生成に失敗しました: %w", err)
	}

	subject := fmt.Sprintf("ScienceFeed 新着論文 %d件 (%s)", len(articles), time.Now().Format("2006-01-02"))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return false, err
	}

	s.logger.Info("ダイジェストメールを送信しました",
		slog.String("user_id", user.ID),
		slog.Int("articles", len(articles)),
	)
	return true, nil
}

// render はダイジェストメールのHTML本文を生成する。
func (s *Sender) render(user *model.User, articles []model.DigestArticle) (string, error) {
	var b strings.Builder
	err := digestTemplate.Execute(&b, templateData{
		Username:     user.Username,
		Articles:     articles,
		DashboardURL: s.dashboardURL,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
