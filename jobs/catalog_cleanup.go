package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// ProductPurger deletes inactive products past the retention window.
type ProductPurger interface {
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunPurger deletes completed sync log rows past the retention window.
type RunPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CatalogCleanupJob removes inactive products and old sync logs. Deactivation
// during a sync never deletes anything; this job is the only deletion path.
type CatalogCleanupJob struct {
	products  ProductPurger
	runs      RunPurger
	retention time.Duration
	logger    *slog.Logger
}

// NewCatalogCleanupJob constructs the job.
func NewCatalogCleanupJob(products ProductPurger, runs RunPurger, retention time.Duration, logger *slog.Logger) *CatalogCleanupJob {
	return &CatalogCleanupJob{products: products, runs: runs, retention: retention, logger: logger}
}

// Handle processes TaskCatalogCleanup tasks.
func (j *CatalogCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CatalogCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	cutoff := time.Now().Add(-j.retention)

	deleted, err := j.products.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	purged, err := j.runs.PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	j.logger.Info("catalog cleanup completed",
		slog.Int64("products_deleted", deleted),
		slog.Int64("sync_logs_purged", purged))
	return nil
}
