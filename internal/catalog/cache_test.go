package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCache(client, time.Minute)
}

func countingLoader(products []Product) (func(context.Context) ([]Product, error), *int) {
	calls := 0
	return func(ctx context.Context) ([]Product, error) {
		calls++
		return products, nil
	}, &calls
}

func TestFetchProductsPopulatesAndServesCache(t *testing.T) {
	_, cache := newTestCache(t)
	loader, calls := countingLoader([]Product{activeProduct("1", "Krem")})

	first, err := cache.FetchProducts(context.Background(), loader)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, *calls)

	second, err := cache.FetchProducts(context.Background(), loader)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, *calls, "second read must hit the cache")
	assert.Equal(t, "Krem", second[0].Name)
}

func TestBumpInvalidatesCachedReads(t *testing.T) {
	_, cache := newTestCache(t)
	loader, calls := countingLoader([]Product{activeProduct("1", "Krem")})

	_, err := cache.FetchProducts(context.Background(), loader)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(context.Background()))

	_, err = cache.FetchProducts(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls, "bumped version must bypass the old entry")
}

func TestFetchProductsFallsThroughWhenRedisDown(t *testing.T) {
	mr, cache := newTestCache(t)
	mr.Close()
	loader, calls := countingLoader([]Product{activeProduct("1", "Krem")})

	products, err := cache.FetchProducts(context.Background(), loader)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 1, *calls)
}

func TestFetchProductsWithoutClient(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	loader, calls := countingLoader(nil)

	products, err := cache.FetchProducts(context.Background(), loader)
	require.NoError(t, err)
	assert.Nil(t, products)
	assert.Equal(t, 1, *calls)
}
