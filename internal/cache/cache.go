package cache

import (
	"context"
	"time"
)

// BytesCache is the minimal cache surface services depend on.
// Implemented by rediscache.RedisCache.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimiter is a fixed-window counter keyed by caller identity.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}
