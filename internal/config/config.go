package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// Pipeline
	PipelineTimeout        time.Duration
	RefreshCooldownMinutes int

	// Digest
	DigestMaxConcurrent int
	DigestSendInterval  time.Duration

	// Cleanup
	RetentionDays int

	// Worker
	WorkerInterval time.Duration

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	DashboardURL string

	// Server
	ServerPort string

	// Rate Limit（refreshエンドポイント、req/min/user）
	RateLimitRefresh int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 10)
	cfg.PipelineTimeout = getEnvDuration("PIPELINE_TIMEOUT", 10*time.Minute)
	cfg.RefreshCooldownMinutes = getEnvInt("REFRESH_COOLDOWN_MINUTES", 5)
	cfg.DigestMaxConcurrent = getEnvInt("DIGEST_MAX_CONCURRENT", 4)
	cfg.DigestSendInterval = getEnvDuration("DIGEST_SEND_INTERVAL", time.Second)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 60)
	cfg.WorkerInterval = getEnvDuration("WORKER_INTERVAL", time.Hour)
	cfg.SMTPHost = getEnvString("SMTP_HOST", "localhost")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 25)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.MailFrom = getEnvString("MAIL_FROM", "sciencefeed@localhost")
	cfg.DashboardURL = getEnvString("DASHBOARD_URL", "http://localhost:3000/dashboard")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitRefresh = getEnvInt("RATE_LIMIT_REFRESH", 10)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
