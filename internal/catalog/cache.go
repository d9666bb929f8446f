package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "catalog:version"

// Cache fronts the product list reads with a versioned redis cache. A sync
// run bumps the version instead of deleting keys, so stale entries simply
// expire under their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching and
// every Fetch falls through to the loader.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// FetchProducts loads the cached product list or populates it via loader.
func (c *Cache) FetchProducts(ctx context.Context, loader func(context.Context) ([]Product, error)) ([]Product, error) {
	if loader == nil {
		return nil, errors.New("catalog: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	ver, err := c.version(ctx)
	if err != nil {
		// Redis being down must not take the storefront down with it.
		return loader(ctx)
	}
	key := fmt.Sprintf("catalog:products:%d", ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var products []Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	}

	products, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(products); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return products, nil
}

// Bump invalidates all cached reads by incrementing the catalog version.
// Called after every completed sync.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
