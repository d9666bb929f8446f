package sync

import (
	"context"
	"log/slog"
	"time"
)

// Runner performs one full sync. Satisfied by *Reconciler.
type Runner interface {
	FullSync(ctx context.Context) (Result, error)
}

// Trigger decides whether a sync should run and serializes runs behind the
// advisory lock. Both the manual endpoint and the scheduled job go through
// RunIfNeeded.
type Trigger struct {
	tracker  Tracker
	runner   Runner
	lock     Locker
	interval time.Duration
	logger   *slog.Logger

	now func() time.Time
}

// NewTrigger constructs the trigger policy. lock may be nil, which disables
// overlap protection (tests only).
func NewTrigger(tracker Tracker, runner Runner, lock Locker, interval time.Duration, logger *slog.Logger) *Trigger {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Trigger{
		tracker:  tracker,
		runner:   runner,
		lock:     lock,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// NeedsSync reports whether the catalog is stale: no successful run yet, or
// the last one completed longer ago than the configured interval. Errors
// while querying fail open; staying stale silently is worse than syncing
// once too often.
func (t *Trigger) NeedsSync(ctx context.Context) bool {
	last, err := t.tracker.LastSuccessful(ctx)
	if err != nil {
		t.logger.Warn("last successful run lookup failed, assuming sync needed", slog.Any("error", err))
		return true
	}
	if last == nil || last.CompletedAt == nil {
		return true
	}
	return t.now().Sub(*last.CompletedAt) > t.interval
}

// RunIfNeeded runs a full sync when forced or needed. It returns a skipped
// Result when the catalog is fresh or another run already holds the lock, so
// callers can short-circuit cheaply.
func (t *Trigger) RunIfNeeded(ctx context.Context, force bool) (Result, error) {
	if !force && !t.NeedsSync(ctx) {
		result := Result{Success: true, Skipped: true, Message: "sync not needed"}
		if last, err := t.tracker.LastSuccessful(ctx); err == nil && last != nil {
			result.LastSync = last.CompletedAt
		}
		return result, nil
	}

	if t.lock != nil {
		release, ok, err := t.lock.Acquire(ctx)
		if err != nil {
			t.logger.Warn("sync lock unavailable, proceeding unlocked", slog.Any("error", err))
		} else if !ok {
			return Result{Success: true, Skipped: true, Message: "sync already running"}, nil
		} else {
			defer release()
		}
	}

	return t.runner.FullSync(ctx)
}
