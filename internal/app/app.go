// Package app はアプリケーションの初期化とサブコマンド実行を提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sciencefeed/internal/article"
	"github.com/hitoshi/sciencefeed/internal/config"
	"github.com/hitoshi/sciencefeed/internal/database"
	"github.com/hitoshi/sciencefeed/internal/digest"
	"github.com/hitoshi/sciencefeed/internal/feed"
	"github.com/hitoshi/sciencefeed/internal/handler"
	"github.com/hitoshi/sciencefeed/internal/keyword"
	"github.com/hitoshi/sciencefeed/internal/logger"
	"github.com/hitoshi/sciencefeed/internal/mailer"
	"github.com/hitoshi/sciencefeed/internal/metrics"
	"github.com/hitoshi/sciencefeed/internal/middleware"
	"github.com/hitoshi/sciencefeed/internal/pipeline"
	"github.com/hitoshi/sciencefeed/internal/repository"
	"github.com/hitoshi/sciencefeed/internal/security"
	"github.com/hitoshi/sciencefeed/internal/textmatch"
	"github.com/hitoshi/sciencefeed/internal/user"
	"github.com/hitoshi/sciencefeed/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで実行する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandIngest:
		return runIngest(cfg, rest)
	case CommandDigest:
		return runDigest(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	case CommandAddUser:
		return runAddUser(cfg, rest)
	case CommandAddFeed:
		return runAddFeed(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// components は各モードが共有する依存関係の束。
type components struct {
	db        *sql.DB
	store     *repository.Store
	txRunner  repository.TxRunner
	registry  *prometheus.Registry
	collector *metrics.Collector
	pipeline  *pipeline.Pipeline

	users    *user.Service
	keywords *keyword.Service
	articles *article.Service
	feeds    *feed.Service
}

// buildComponents はDB接続を開き、取り込みパイプラインまでの依存関係をワイヤリングする。
// 呼び出し側はdb.Close()に責任を持つ。
func buildComponents(cfg *config.Config) (*components, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	store := repository.NewStore(db)
	txRunner := repository.NewSQLTxRunner(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	ssrfGuard := security.NewSSRFGuard()
	fetcher := feed.NewFetcher(ssrfGuard, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)
	cache := feed.NewCache(fetcher, collector, slog.Default(), cfg.FetchMaxConcurrent)
	detector := feed.NewDetector(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize)

	pipe := pipeline.New(
		store, txRunner, cache,
		security.NewContentSanitizer(),
		textmatch.NewMatcher(),
		collector,
		slog.Default(),
		cfg.PipelineTimeout,
	)

	return &components{
		db:        db,
		store:     store,
		txRunner:  txRunner,
		registry:  registry,
		collector: collector,
		pipeline:  pipe,
		users:     user.NewService(store, slog.Default()),
		keywords:  keyword.NewService(store, txRunner, slog.Default()),
		articles:  article.NewService(store, slog.Default()),
		feeds:     feed.NewService(store.Feeds, store.Subscriptions, detector),
	}, nil
}

// newDigestSender はダイジェスト送信の依存関係をワイヤリングする。
func newDigestSender(cfg *config.Config, c *components) *digest.Sender {
	smtpMailer := mailer.NewSMTPMailer(
		cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom,
		cfg.SMTPUsername, cfg.SMTPPassword,
	)
	return digest.NewSender(
		c.store, smtpMailer, c.collector, slog.Default(),
		cfg.DigestMaxConcurrent, cfg.DigestSendInterval, cfg.DashboardURL,
	)
}

// newCleanupJob は保持期間設定を反映したクリーンアップジョブを生成する。
func newCleanupJob(cfg *config.Config, c *components) *cleanup.Job {
	job := cleanup.NewJob(c.store.UserArticles, c.collector, slog.Default())
	job.RetentionDays = cfg.RetentionDays
	return job
}

// runServe は運用HTTPサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(float64(cfg.RateLimitRefresh) / 60.0),
		Burst:           cfg.RateLimitRefresh,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		RateLimiter:    rateLimiter,
		DB:             c.db,
		MetricsHandler: metrics.Handler(c.registry),
		Pipeline:       c.pipeline,
		Users:          c.store.Users,
		Cooldown:       time.Duration(cfg.RefreshCooldownMinutes) * time.Minute,
		Keywords:       c.keywords,
		Articles:       c.articles,
		Feeds:          c.feeds,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// WorkerInterval間隔で全ユーザーの取り込みを実行し、
// クリーンアップを日次でバックグラウンド実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	cleanupJob := newCleanupJob(cfg, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.WorkerInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 取り込みをメインgoroutineで定期実行（ブロッキング）
	if err := c.pipeline.RunAll(ctx); err != nil {
		slog.Error("ingestion failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := c.pipeline.RunAll(ctx); err != nil {
				slog.Error("ingestion failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runIngest は取り込みパイプラインを1回実行する。
// argsにユーザーIDが与えられた場合はそのユーザーのみ処理する。
func runIngest(cfg *config.Config, args []string) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	ctx := context.Background()

	if len(args) > 0 {
		return c.pipeline.RunUser(ctx, args[0])
	}
	return c.pipeline.RunAll(ctx)
}

// runDigest はダイジェストメールの送信を1回実行する。
func runDigest(cfg *config.Config) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	sender := newDigestSender(cfg, c)
	return sender.RunOnce(context.Background())
}

// runCleanup は保持期間切れリンクの削除を1回実行する。
func runCleanup(cfg *config.Config) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	return newCleanupJob(cfg, c).Run(context.Background())
}

// runAddUser は新規ユーザーをアクティブ状態で登録する。
// 登録直後から取り込みとダイジェストの対象となる。
func runAddUser(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: adduser <username> <email>")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	u, err := c.users.Register(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	slog.Info("user created",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return nil
}

// runAddFeed はURLからフィードを検出してカタログに登録する。
// 論文一覧ページのURLを与えた場合は自動検出でフィードURLに解決される。
func runAddFeed(cfg *config.Config, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: addfeed <publisher> <journal> <url>")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	f, err := c.feeds.Register(context.Background(), args[0], args[1], args[2])
	if err != nil {
		return err
	}

	slog.Info("feed registered",
		slog.String("feed_id", f.ID),
		slog.String("journal", f.Journal),
		slog.String("url", f.URL),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed は学術誌フィードカタログの初期投入を実行する。
// URLで冪等に動作するため再実行しても安全。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.SeedFeeds(context.Background(), db); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
