package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Allow counts a hit for key in a fixed window and reports whether the caller
// is still under limit. The first hit in a window sets the expiry.
func (r *RedisCache) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := r.c.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "redis incr")
	}
	if count == 1 {
		if err := r.c.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, errors.Wrap(err, "redis expire")
		}
	}
	return count <= limit, count, nil
}
