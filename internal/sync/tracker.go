package sync

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tracker records sync runs in the sync_log table. Begin writes the started
// row, Complete writes the single terminal update; completing a run twice is
// a caller bug and is not guarded against.
type Tracker interface {
	Begin(ctx context.Context, syncType string) (int64, error)
	Complete(ctx context.Context, runID int64, outcome Outcome) error
	LastSuccessful(ctx context.Context) (*Run, error)
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type tracker struct {
	pool *pgxpool.Pool
}

// NewTracker constructs the PostgreSQL-backed run tracker.
func NewTracker(pool *pgxpool.Pool) Tracker {
	return &tracker{pool: pool}
}

func (t *tracker) Begin(ctx context.Context, syncType string) (int64, error) {
	var id int64
	err := t.pool.QueryRow(ctx,
		`INSERT INTO sync_log (sync_type, status, started_at) VALUES ($1, $2, now()) RETURNING id`,
		syncType, StatusStarted).Scan(&id)
	return id, err
}

func (t *tracker) Complete(ctx context.Context, runID int64, outcome Outcome) error {
	if outcome.Status == StatusFailed {
		var message string
		if outcome.Err != nil {
			message = outcome.Err.Error()
		}
		_, err := t.pool.Exec(ctx, `
			UPDATE sync_log SET
				status = $2, completed_at = now(), duration_seconds = $3, error_message = $4
			WHERE id = $1`,
			runID, StatusFailed, int(outcome.Duration.Seconds()), message)
		return err
	}

	_, err := t.pool.Exec(ctx, `
		UPDATE sync_log SET
			status = $2, completed_at = now(), duration_seconds = $3,
			products_processed = $4, products_created = $5, products_updated = $6,
			categories_processed = $7
		WHERE id = $1`,
		runID, outcome.Status, int(outcome.Duration.Seconds()),
		outcome.Products.Processed, outcome.Products.Created, outcome.Products.Updated,
		outcome.Categories.Processed)
	return err
}

const runColumns = `
	id, sync_type, status, started_at, completed_at, duration_seconds,
	products_processed, products_created, products_updated, categories_processed,
	error_message`

func (t *tracker) LastSuccessful(ctx context.Context) (*Run, error) {
	row := t.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM sync_log
		WHERE status = $1 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT 1`, StatusSuccess)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (t *tracker) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := t.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM sync_log
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (t *tracker) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := t.pool.Exec(ctx, `DELETE FROM sync_log WHERE completed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.SyncType, &run.Status, &run.StartedAt, &run.CompletedAt,
		&run.DurationSeconds, &run.ProductsProcessed, &run.ProductsCreated,
		&run.ProductsUpdated, &run.CategoriesProcessed, &run.ErrorMessage)
	return run, err
}
