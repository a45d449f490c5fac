package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts hits per caller in fixed windows. Ledger writes
// here cost real fees and rounds of waiting, so windows are coarse and the
// limiter stays simple: INCR plus a window-length expiry on first hit.
type FixedWindowLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewFixedWindowLimiter(rdb *redis.Client, prefix string, limit int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, suffix string) (allowed bool, retryAfter time.Duration, err error) {
	key := fmt.Sprintf("%s:%s", l.prefix, suffix)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count > l.limit {
		ttl, err := l.rdb.PTTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}

	return true, 0, nil
}
