// Package cleanup はアイドル状態のワークスペースを破棄する定期ジョブを提供する。
// 最終アクセスから保持期間（デフォルト30分）を超えたワークスペースをメモリから取り除く。
// 保存済みidentityは削除しないため、クライアントが戻ればサインイン状態は復元される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultIdleTTL はワークスペースを保持する時間の既定値。
const DefaultIdleTTL = 30 * time.Minute

// Evictor はアイドル状態のワークスペースを破棄するインターフェース。
// workspace.Managerが実装する。
type Evictor interface {
	EvictIdle(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
}

// CleanupJob はアイドル状態のワークスペースの破棄ジョブ。
// 冪等であり、破棄対象がなくてもエラーにならない。
type CleanupJob struct {
	evictor Evictor
	logger  *slog.Logger
	IdleTTL time.Duration // ワークスペースの保持時間（デフォルト: 30分）

	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(evictor Evictor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		evictor: evictor,
		logger:  logger,
		IdleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
}

// Run は最終アクセスがIdleTTLより前のワークスペースを破棄する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	evicted, err := j.evictor.EvictIdle(ctx, start, j.IdleTTL)
	if err != nil {
		j.logger.Error("ワークスペースのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("idle_ttl", j.IdleTTL),
		)
		return fmt.Errorf("ワークスペースのクリーンアップに失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("ワークスペースのクリーンアップが完了しました",
		slog.Int("evicted_count", evicted),
		slog.Float64("idle_ttl_seconds", j.IdleTTL.Seconds()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// エラーはRun内でログ出力済み
			_ = j.Run(ctx)
		}
	}
}
