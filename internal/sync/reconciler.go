package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/provider"
)

// ProviderAPI is the slice of the remote gateway the reconciler uses.
type ProviderAPI interface {
	Categories(ctx context.Context) ([]provider.Category, error)
	ProductIDs(ctx context.Context, categoryID int64) ([]string, error)
	ProductDetails(ctx context.Context, ids []string) (map[string]provider.ProductDetails, error)
}

// CacheBumper invalidates catalog read caches after a completed sync.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Config tunes the reconciler's chunking and pacing.
type Config struct {
	// ChunkSize is the number of product ids per detail-fetch call.
	ChunkSize int
	// CategoryConcurrency is the number of categories synced at once.
	CategoryConcurrency int
	// ChunkPause is the delay between consecutive chunks of one category.
	ChunkPause time.Duration
	// BatchPause is the delay between category batches.
	BatchPause time.Duration
	// PriceListID and WarehouseID select which price/stock entry is
	// canonical. Empty means first available.
	PriceListID string
	WarehouseID string
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 100
	}
	if c.CategoryConcurrency <= 0 {
		c.CategoryConcurrency = 2
	}
	return c
}

// Reconciler performs full catalog syncs: categories first, then products
// per category in chunks, then a finalize pass that deactivates everything
// not re-seen. Failures below the category-list level are logged and skipped
// so one bad category cannot block the rest of the catalog.
type Reconciler struct {
	api     ProviderAPI
	repo    catalog.Repository
	tracker Tracker
	cache   CacheBumper
	logger  *slog.Logger
	cfg     Config

	now func() time.Time
}

// NewReconciler constructs a Reconciler. cache may be nil.
func NewReconciler(api ProviderAPI, repo catalog.Repository, tracker Tracker, cache CacheBumper, logger *slog.Logger, cfg Config) *Reconciler {
	return &Reconciler{
		api:     api,
		repo:    repo,
		tracker: tracker,
		cache:   cache,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// FullSync runs one end-to-end synchronization and records it in the run
// tracker. Only a failure to obtain the category list (or a storage failure
// in the finalize pass) fails the run.
func (r *Reconciler) FullSync(ctx context.Context) (Result, error) {
	startedAt := r.now()

	runID, err := r.tracker.Begin(ctx, TypeFull)
	if err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("sync: begin run: %w", err)
	}

	r.logger.Info("full sync started", slog.Int64("run_id", runID))

	result, err := r.run(ctx, startedAt)
	duration := r.now().Sub(startedAt)
	result.Duration = duration.Seconds()

	if err != nil {
		if completeErr := r.tracker.Complete(ctx, runID, Outcome{
			Status:   StatusFailed,
			Duration: duration,
			Err:      err,
		}); completeErr != nil {
			r.logger.Error("record failed run", slog.Any("error", completeErr))
		}
		result.Success = false
		result.Error = err.Error()
		r.logger.Error("full sync failed", slog.Int64("run_id", runID), slog.Any("error", err))
		return result, err
	}

	if err := r.tracker.Complete(ctx, runID, Outcome{
		Status:     StatusSuccess,
		Duration:   duration,
		Categories: result.Categories,
		Products:   result.Products,
	}); err != nil {
		r.logger.Error("record successful run", slog.Any("error", err))
	}

	if r.cache != nil {
		if err := r.cache.Bump(ctx); err != nil {
			r.logger.Warn("cache bump", slog.Any("error", err))
		}
	}

	result.Success = true
	r.logger.Info("full sync completed",
		slog.Int64("run_id", runID),
		slog.Duration("duration", duration),
		slog.Int("categories", result.Categories.Processed),
		slog.Int("products", result.Products.Processed))
	return result, nil
}

func (r *Reconciler) run(ctx context.Context, startedAt time.Time) (Result, error) {
	var result Result

	catStats, err := r.syncCategories(ctx)
	if err != nil {
		return result, err
	}
	result.Categories = catStats

	categories, err := r.repo.ListCategories(ctx)
	if err != nil {
		return result, fmt.Errorf("sync: list local categories: %w", err)
	}

	result.Products = r.syncAllProducts(ctx, categories, startedAt)

	deactivated, err := r.repo.DeactivateStale(ctx, startedAt)
	if err != nil {
		return result, fmt.Errorf("sync: deactivate stale products: %w", err)
	}
	if deactivated > 0 {
		r.logger.Info("deactivated products not seen in sync", slog.Int64("count", deactivated))
	}

	return result, nil
}

// syncCategories fetches the full category list in one call and upserts it
// inside a single transaction. Failure here is fatal to the run.
func (r *Reconciler) syncCategories(ctx context.Context) (Stats, error) {
	remote, err := r.api.Categories(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("sync: fetch categories: %w", err)
	}

	categories := make([]catalog.Category, 0, len(remote))
	for _, c := range remote {
		cat := catalog.Category{
			ID:   fmt.Sprintf("%d", c.CategoryID),
			Name: c.Name,
		}
		if c.ParentID > 0 {
			parent := fmt.Sprintf("%d", c.ParentID)
			cat.ParentID = &parent
		}
		categories = append(categories, cat)
	}

	created, updated, err := r.repo.UpsertCategories(ctx, categories)
	if err != nil {
		return Stats{}, fmt.Errorf("sync: upsert categories: %w", err)
	}

	stats := Stats{Processed: len(categories), Created: created, Updated: updated}
	r.logger.Info("categories synced",
		slog.Int("processed", stats.Processed),
		slog.Int("created", created),
		slog.Int("updated", updated))
	return stats, nil
}

// syncAllProducts walks the categories in batches of the configured width
// with a pause between batches. A failing category is logged and contributes
// nothing; it never aborts the run.
func (r *Reconciler) syncAllProducts(ctx context.Context, categories []catalog.Category, startedAt time.Time) Stats {
	var total Stats
	width := r.cfg.CategoryConcurrency

	for i := 0; i < len(categories); i += width {
		end := i + width
		if end > len(categories) {
			end = len(categories)
		}
		batch := categories[i:end]

		results := make([]Stats, len(batch))
		var g errgroup.Group
		for j, cat := range batch {
			g.Go(func() error {
				stats, err := r.syncCategoryProducts(ctx, cat, startedAt)
				if err != nil {
					r.logger.Warn("category sync skipped",
						slog.String("category", cat.Name),
						slog.Any("error", err))
					return nil
				}
				results[j] = stats
				return nil
			})
		}
		_ = g.Wait()

		for _, stats := range results {
			total.add(stats)
		}

		if end < len(categories) {
			r.pause(ctx, r.cfg.BatchPause)
		}
	}
	return total
}

// syncCategoryProducts lists one category's product ids and upserts their
// details chunk by chunk, one transaction per chunk. A failing chunk is
// skipped; the surrounding chunks still commit.
func (r *Reconciler) syncCategoryProducts(ctx context.Context, cat catalog.Category, startedAt time.Time) (Stats, error) {
	categoryID, err := parseCategoryID(cat.ID)
	if err != nil {
		return Stats{}, err
	}

	ids, err := r.api.ProductIDs(ctx, categoryID)
	if err != nil {
		return Stats{}, fmt.Errorf("list products for %s: %w", cat.Name, err)
	}
	if len(ids) == 0 {
		return Stats{}, nil
	}

	var stats Stats
	for i := 0; i < len(ids); i += r.cfg.ChunkSize {
		end := i + r.cfg.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		chunkStats, err := r.syncChunk(ctx, cat, chunk, startedAt)
		if err != nil {
			r.logger.Warn("chunk sync skipped",
				slog.String("category", cat.Name),
				slog.Int("chunk_start", i),
				slog.Int("chunk_size", len(chunk)),
				slog.Any("error", err))
		} else {
			stats.add(chunkStats)
		}

		if end < len(ids) {
			r.pause(ctx, r.cfg.ChunkPause)
		}
	}

	r.logger.Info("category synced",
		slog.String("category", cat.Name),
		slog.Int("processed", stats.Processed),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated))
	return stats, nil
}

func (r *Reconciler) syncChunk(ctx context.Context, cat catalog.Category, ids []string, startedAt time.Time) (Stats, error) {
	details, err := r.api.ProductDetails(ctx, ids)
	if err != nil {
		return Stats{}, err
	}

	products := make([]catalog.Product, 0, len(details))
	for providerID, d := range details {
		product, ok := mapProduct(providerID, d, cat, startedAt, r.cfg.PriceListID, r.cfg.WarehouseID)
		if !ok {
			r.logger.Debug("product without resolvable name skipped", slog.String("provider_id", providerID))
			continue
		}
		products = append(products, product)
	}
	if len(products) == 0 {
		return Stats{}, nil
	}

	created, updated, err := r.repo.UpsertProducts(ctx, products)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Processed: len(products), Created: created, Updated: updated}, nil
}

func (r *Reconciler) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func parseCategoryID(id string) (int64, error) {
	parsed, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed category id %q: %w", id, err)
	}
	return parsed, nil
}
