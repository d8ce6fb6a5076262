package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface. Values are stored as JSON
// (strings as-is) and decoded into dest on Get.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result for ttl. Cache failures never fail the call; hit reports whether the
// value came from the cache.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if c != nil {
		if err := c.Get(ctx, key, &v); err == nil {
			return v, true, nil
		}
	}
	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}
	if c != nil {
		_ = c.Set(ctx, key, v, ttl)
	}
	return v, false, nil
}
