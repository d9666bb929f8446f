package sync

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/provider"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeProvider struct {
	mu         stdsync.Mutex
	categories []provider.Category
	productIDs map[int64][]string
	details    map[string]provider.ProductDetails

	categoriesErr   error
	idsErr          map[int64]error
	detailsCalls    int
	failDetailsCall int // fail the Nth ProductDetails call, 1-based
}

func (f *fakeProvider) Categories(ctx context.Context) ([]provider.Category, error) {
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return f.categories, nil
}

func (f *fakeProvider) ProductIDs(ctx context.Context, categoryID int64) ([]string, error) {
	if err := f.idsErr[categoryID]; err != nil {
		return nil, err
	}
	return f.productIDs[categoryID], nil
}

func (f *fakeProvider) ProductDetails(ctx context.Context, ids []string) (map[string]provider.ProductDetails, error) {
	f.mu.Lock()
	f.detailsCalls++
	call := f.detailsCalls
	f.mu.Unlock()
	if f.failDetailsCall > 0 && call == f.failDetailsCall {
		return nil, errors.New("provider unavailable")
	}
	out := make(map[string]provider.ProductDetails, len(ids))
	for _, id := range ids {
		if d, ok := f.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

type mockStore struct {
	mu         stdsync.Mutex
	categories map[string]catalog.Category
	products   map[string]catalog.Product
}

func newMockStore() *mockStore {
	return &mockStore{
		categories: make(map[string]catalog.Category),
		products:   make(map[string]catalog.Product),
	}
}

func (m *mockStore) UpsertCategories(ctx context.Context, categories []catalog.Category) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created, updated int
	for _, c := range categories {
		if _, ok := m.categories[c.ID]; ok {
			updated++
		} else {
			created++
		}
		m.categories[c.ID] = c
	}
	return created, updated, nil
}

func (m *mockStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]catalog.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) UpsertProducts(ctx context.Context, products []catalog.Product) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created, updated int
	for _, p := range products {
		if _, ok := m.products[p.ProviderID]; ok {
			updated++
		} else {
			created++
		}
		p.IsActive = true
		m.products[p.ProviderID] = p
	}
	return created, updated, nil
}

func (m *mockStore) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, p := range m.products {
		if p.IsActive && p.LastSync.Before(before) {
			p.IsActive = false
			m.products[id] = p
			count++
		}
	}
	return count, nil
}

func (m *mockStore) ListActive(ctx context.Context) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) GetActive(ctx context.Context, id string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id && p.IsActive {
			return &p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *mockStore) CountProducts(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products), nil
}

func (m *mockStore) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, p := range m.products {
		if !p.IsActive && p.UpdatedAt.Before(cutoff) {
			delete(m.products, id)
			count++
		}
	}
	return count, nil
}

func (m *mockStore) GetStats(ctx context.Context) (catalog.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := catalog.Stats{TotalProducts: len(m.products), TotalCategories: len(m.categories)}
	for _, p := range m.products {
		if p.IsActive {
			s.ActiveProducts++
			if p.Quantity == 0 {
				s.OutOfStock++
			}
		} else {
			s.InactiveProducts++
		}
	}
	return s, nil
}

func (m *mockStore) activeIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, p := range m.products {
		if p.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type fakeTracker struct {
	mu          stdsync.Mutex
	nextID      int64
	outcomes    map[int64]Outcome
	lastSuccess *Run
	beginErr    error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{outcomes: make(map[int64]Outcome)}
}

func (f *fakeTracker) Begin(ctx context.Context, syncType string) (int64, error) {
	if f.beginErr != nil {
		return 0, f.beginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTracker) Complete(ctx context.Context, runID int64, outcome Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[runID] = outcome
	if outcome.Status == StatusSuccess {
		now := time.Now()
		f.lastSuccess = &Run{ID: runID, SyncType: TypeFull, Status: StatusSuccess, CompletedAt: &now}
	}
	return nil
}

func (f *fakeTracker) LastSuccessful(ctx context.Context) (*Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSuccess, nil
}

func (f *fakeTracker) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return nil, nil
}

func (f *fakeTracker) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeBumper struct {
	mu    stdsync.Mutex
	bumps int
}

func (f *fakeBumper) Bump(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumps++
	return nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func namedDetails(name string) provider.ProductDetails {
	return provider.ProductDetails{
		TextFields: map[string]string{"name": name},
		Prices:     map[string]float64{"1": 99},
		Stock:      map[string]float64{"1": 3},
		TaxRate:    23,
	}
}

func newTestProvider() *fakeProvider {
	return &fakeProvider{
		categories: []provider.Category{
			{CategoryID: 8, Name: "Cialo"},
			{CategoryID: 7, Name: "Twarz"},
		},
		productIDs: map[int64][]string{
			7: {"1001", "1002"},
			8: {"1003"},
		},
		details: map[string]provider.ProductDetails{
			"1001": namedDetails("Krem"),
			"1002": namedDetails("Serum"),
			"1003": namedDetails("Balsam"),
		},
		idsErr: map[int64]error{},
	}
}

func newTestReconciler(api ProviderAPI, store catalog.Repository, tracker Tracker, bumper CacheBumper, t *testing.T) *Reconciler {
	return NewReconciler(api, store, tracker, bumper, testLogger(t), Config{
		ChunkSize:           100,
		CategoryConcurrency: 2,
	})
}

// ============================================================================
// TESTS
// ============================================================================

func TestFullSyncHappyPath(t *testing.T) {
	api := newTestProvider()
	store := newMockStore()
	tracker := newFakeTracker()
	bumper := &fakeBumper{}

	r := newTestReconciler(api, store, tracker, bumper, t)
	result, err := r.FullSync(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, Stats{Processed: 2, Created: 2}, result.Categories)
	assert.Equal(t, Stats{Processed: 3, Created: 3}, result.Products)
	assert.Equal(t, []string{"1001", "1002", "1003"}, store.activeIDs())
	assert.Equal(t, 1, bumper.bumps)

	outcome := tracker.outcomes[1]
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, 3, outcome.Products.Processed)
	assert.Equal(t, 2, outcome.Categories.Processed)
}

func TestFullSyncIsIdempotent(t *testing.T) {
	api := newTestProvider()
	store := newMockStore()
	tracker := newFakeTracker()

	r := newTestReconciler(api, store, tracker, nil, t)

	first, err := r.FullSync(context.Background())
	require.NoError(t, err)
	activeAfterFirst := store.activeIDs()

	second, err := r.FullSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, first.Products.Created)
	assert.Equal(t, 0, second.Products.Created, "second run must not create anything")
	assert.Equal(t, 3, second.Products.Updated)
	assert.Equal(t, activeAfterFirst, store.activeIDs(), "active set unchanged")
}

func TestFullSyncDeactivatesUnseenProducts(t *testing.T) {
	api := newTestProvider()
	store := newMockStore()
	tracker := newFakeTracker()

	// Product that no longer exists on the provider side.
	old := time.Now().Add(-time.Hour)
	store.products["9999"] = catalog.Product{
		ID: "9999", ProviderID: "9999", Name: "Wycofany", IsActive: true, LastSync: old,
	}

	r := newTestReconciler(api, store, tracker, nil, t)
	_, err := r.FullSync(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, store.activeIDs(), "9999")
	assert.False(t, store.products["9999"].IsActive)
	assert.Contains(t, store.activeIDs(), "1001")
}

func TestChunkFailureDoesNotFailRun(t *testing.T) {
	api := &fakeProvider{
		categories: []provider.Category{{CategoryID: 7, Name: "Twarz"}},
		productIDs: map[int64][]string{
			7: {"1", "2", "3", "4", "5", "6"},
		},
		details: map[string]provider.ProductDetails{
			"1": namedDetails("P1"), "2": namedDetails("P2"),
			"3": namedDetails("P3"), "4": namedDetails("P4"),
			"5": namedDetails("P5"), "6": namedDetails("P6"),
		},
		idsErr:          map[int64]error{},
		failDetailsCall: 2,
	}
	store := newMockStore()
	tracker := newFakeTracker()

	r := NewReconciler(api, store, tracker, nil, testLogger(t), Config{
		ChunkSize:           2,
		CategoryConcurrency: 1,
	})

	result, err := r.FullSync(context.Background())
	require.NoError(t, err, "a failed chunk must not fail the run")

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Products.Processed, "only the two surviving chunks count")
	assert.Equal(t, []string{"1", "2", "5", "6"}, store.activeIDs())
	assert.Equal(t, StatusSuccess, tracker.outcomes[1].Status)
}

func TestCategoryFailureIsSkipped(t *testing.T) {
	api := newTestProvider()
	api.idsErr[8] = errors.New("category endpoint down")
	store := newMockStore()
	tracker := newFakeTracker()

	r := newTestReconciler(api, store, tracker, nil, t)
	result, err := r.FullSync(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"1001", "1002"}, store.activeIDs(), "healthy category still syncs")
}

func TestCategoryListFailureIsFatal(t *testing.T) {
	api := newTestProvider()
	api.categoriesErr = errors.New("provider down")
	store := newMockStore()
	tracker := newFakeTracker()

	r := newTestReconciler(api, store, tracker, nil, t)
	result, err := r.FullSync(context.Background())
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	outcome := tracker.outcomes[1]
	assert.Equal(t, StatusFailed, outcome.Status)
	require.Error(t, outcome.Err)
	assert.Empty(t, store.activeIDs())
}

func TestFullSyncFailsWhenTrackerUnavailable(t *testing.T) {
	tracker := newFakeTracker()
	tracker.beginErr = errors.New("db down")

	r := newTestReconciler(newTestProvider(), newMockStore(), tracker, nil, t)
	_, err := r.FullSync(context.Background())
	require.Error(t, err)
}
