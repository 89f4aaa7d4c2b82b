// Package cleanup はセッション履歴の自動削除ジョブを提供する。
// 保持期間（デフォルト365日）を超過した退館済みセッションを
// 日次バッチで削除する。入館中のセッションは削除対象にならない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/repository"
)

// CleanupJob は保持期間を超過したセッション履歴の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessionRepo   repository.SessionRepository
	clk           clock.Clock
	logger        *slog.Logger
	RetentionDays int // セッション履歴の保持日数（デフォルト: 365）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は365日。
func NewCleanupJob(sessionRepo repository.SessionRepository, clk clock.Clock, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessionRepo:   sessionRepo,
		clk:           clk,
		logger:        logger,
		RetentionDays: 365,
	}
}

// Run は保持期間を超過した退館済みセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := j.clk.Now().AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.sessionRepo.DeleteClosedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("セッション履歴クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッション履歴クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッション履歴クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
