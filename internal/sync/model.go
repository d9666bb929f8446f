// Package sync implements the catalog synchronization subsystem: the
// reconciler that mirrors the provider catalog into local storage, the
// durable run tracker, and the trigger policy that decides when a sync runs.
package sync

import "time"

// Run statuses. A run moves started -> success or started -> failed and is
// never reopened.
const (
	StatusStarted = "started"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TypeFull is the only sync type currently performed.
const TypeFull = "full"

// Run is one durable sync_log row.
type Run struct {
	ID                  int64      `json:"id"`
	SyncType            string     `json:"sync_type"`
	Status              string     `json:"status"`
	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	DurationSeconds     int        `json:"duration_seconds"`
	ProductsProcessed   int        `json:"products_processed"`
	ProductsCreated     int        `json:"products_created"`
	ProductsUpdated     int        `json:"products_updated"`
	CategoriesProcessed int        `json:"categories_processed"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
}

// Stats counts the records touched by one side of a sync.
type Stats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
}

func (s *Stats) add(other Stats) {
	s.Processed += other.Processed
	s.Created += other.Created
	s.Updated += other.Updated
}

// Outcome is the terminal write for a run.
type Outcome struct {
	Status     string
	Duration   time.Duration
	Categories Stats
	Products   Stats
	Err        error
}

// Result is what a sync invocation reports back to its caller.
type Result struct {
	Success    bool       `json:"success"`
	Skipped    bool       `json:"skipped,omitempty"`
	Message    string     `json:"message,omitempty"`
	Duration   float64    `json:"duration"`
	Categories Stats      `json:"-"`
	Products   Stats      `json:"-"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
	Error      string     `json:"error,omitempty"`
}
