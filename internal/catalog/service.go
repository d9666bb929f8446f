package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Syncer is the slice of the sync subsystem the read path needs: a staleness
// check, a blocking sync for cold starts and a non-blocking one for stale
// reads. Wired up in the command packages.
type Syncer interface {
	NeedsSync(ctx context.Context) bool
	SyncNow(ctx context.Context, force bool) error
	SyncAsync(ctx context.Context) error
}

// Service serves the locally persisted catalog. It never calls the provider
// on a normal page load; the only exception is bootstrapping an empty store.
type Service struct {
	repo   Repository
	cache  *Cache
	syncer Syncer
	logger *slog.Logger
}

// NewService constructs the read service. syncer may be nil, which disables
// the bootstrap and background-refresh behavior (used by the worker binary).
func NewService(repo Repository, cache *Cache, syncer Syncer, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, syncer: syncer, logger: logger}
}

// ListActiveProducts returns the active catalog ordered by name with Polish
// collation. An empty store triggers one synchronous full sync first; a stale
// but non-empty store is served as-is while a background sync is kicked off.
func (s *Service) ListActiveProducts(ctx context.Context) ([]Product, error) {
	total, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: count products: %w", err)
	}

	if total == 0 && s.syncer != nil {
		s.logger.Info("empty catalog, forcing bootstrap sync")
		if err := s.syncer.SyncNow(ctx, true); err != nil {
			return nil, fmt.Errorf("catalog: bootstrap sync: %w", err)
		}
	} else if s.syncer != nil && s.syncer.NeedsSync(ctx) {
		if err := s.syncer.SyncAsync(ctx); err != nil {
			s.logger.Warn("background sync trigger failed", slog.Any("error", err))
		}
	}

	products, err := s.cache.FetchProducts(ctx, s.repo.ListActive)
	if err != nil {
		return nil, fmt.Errorf("catalog: list active: %w", err)
	}

	sortByName(products)
	return products, nil
}

// GetProduct returns one active product or ErrNotFound.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetActive(ctx, id)
}

// Stats exposes the repository's catalog snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.GetStats(ctx)
}

// sortByName orders products by name using Polish collation, so names with
// diacritics sort the way the storefront expects.
func sortByName(products []Product) {
	c := collate.New(language.Polish)
	c.Sort(byName(products))
}

type byName []Product

func (p byName) Len() int           { return len(p) }
func (p byName) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p byName) Bytes(i int) []byte { return []byte(p[i].Name) }
