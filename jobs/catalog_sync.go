package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lumina-clinic/lumina-clinic/internal/sync"
)

// SyncTrigger is the trigger surface the sync job needs.
type SyncTrigger interface {
	RunIfNeeded(ctx context.Context, force bool) (sync.Result, error)
}

// CatalogSyncJob runs the sync trigger from the queue.
type CatalogSyncJob struct {
	trigger SyncTrigger
	logger  *slog.Logger
}

// NewCatalogSyncJob constructs the job.
func NewCatalogSyncJob(trigger SyncTrigger, logger *slog.Logger) *CatalogSyncJob {
	return &CatalogSyncJob{trigger: trigger, logger: logger}
}

// Handle processes TaskCatalogSync tasks. A failed sync returns the error so
// asynq retries it; a skipped run is terminal.
func (j *CatalogSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CatalogSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	result, err := j.trigger.RunIfNeeded(ctx, payload.Force)
	if err != nil {
		return err
	}
	if result.Skipped {
		j.logger.Info("scheduled sync skipped", slog.String("reason", result.Message))
		return nil
	}
	j.logger.Info("scheduled sync completed",
		slog.Float64("duration_seconds", result.Duration),
		slog.Int("products", result.Products.Processed),
		slog.Int("categories", result.Categories.Processed))
	return nil
}
