// Package jobs wires the background work: the scheduled catalog sync, the
// retention cleanup and the queue plumbing around them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync runs the catalog synchronization trigger.
	TaskCatalogSync = "catalog:sync"
	// TaskCatalogCleanup deletes stale inactive products and old sync logs.
	TaskCatalogCleanup = "catalog:cleanup"
)

// CatalogSyncPayload parameterizes one sync task.
type CatalogSyncPayload struct {
	Force       bool      `json:"force"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCatalogSyncTask constructs an Asynq task for a catalog sync.
func NewCatalogSyncTask(force bool) (*asynq.Task, error) {
	data, err := json.Marshal(CatalogSyncPayload{Force: force, RequestedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSync, data, asynq.Queue(QueueDefault)), nil
}

// CatalogCleanupPayload parameterizes one cleanup pass.
type CatalogCleanupPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewCatalogCleanupTask constructs an Asynq task for the retention cleanup.
func NewCatalogCleanupTask() (*asynq.Task, error) {
	data, err := json.Marshal(CatalogCleanupPayload{RequestedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogCleanup, data, asynq.Queue(QueueDefault)), nil
}
