package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKey = "catalog:sync:lock"

// Locker guards against overlapping sync runs. Acquire returns ok=false when
// another run holds the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// RedisLock is an advisory lock on a single redis key. The TTL bounds how
// long a crashed run can keep the lock.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLock constructs the lock. ttl should comfortably exceed the longest
// expected sync run.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisLock{client: client, ttl: ttl}
}

// Acquire claims the lock with a unique owner token. The returned release
// func only deletes the key while this owner still holds it.
func (l *RedisLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		current, err := l.client.Get(context.Background(), lockKey).Result()
		if err != nil || current != token {
			return
		}
		_ = l.client.Del(context.Background(), lockKey).Err()
	}
	return release, true, nil
}
