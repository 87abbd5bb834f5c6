// Package cleanup は記事リンクの自動削除ジョブを提供する。
// 削除済みマークから保持期間（デフォルト60日）を超過したリンクと、
// マッチキーワードが1件も残っていない孤児リンクを日次バッチで物理削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sciencefeed/internal/repository"
)

// PurgeMetrics はクリーンアップ結果のメトリクス記録インターフェース。
type PurgeMetrics interface {
	RecordArticlesPurged(count int)
}

// Job は保持期間を超過したリンクの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	links         repository.UserArticleRepository
	metrics       PurgeMetrics
	logger        *slog.Logger
	RetentionDays int // 削除済みリンクの保持日数（デフォルト: 60）
}

// NewJob は新しいJobを生成する。
// デフォルトの保持日数は60日。
func NewJob(links repository.UserArticleRepository, metrics PurgeMetrics, logger *slog.Logger) *Job {
	return &Job{
		links:         links,
		metrics:       metrics,
		logger:        logger,
		RetentionDays: 60,
	}
}

// Run は2段階の削除を実行する。
// 1. deleted_atがRetentionDays日前より古い削除済みリンクを物理削除する。
// 2. キーワード削除のカスケードで関連が空になった孤児リンクを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	expired, err := j.links.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("期限切れリンクの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("期限切れリンクの削除に失敗: %w", err)
	}

	orphans, err := j.links.DeleteOrphans(ctx)
	if err != nil {
		j.logger.Error("孤児リンクの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("孤児リンクの削除に失敗: %w", err)
	}

	j.metrics.RecordArticlesPurged(int(expired + orphans))

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("expired_count", expired),
		slog.Int64("orphan_count", orphans),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
