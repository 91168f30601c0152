package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// FixedWindow counts requests per caller in fixed windows using INCR and an
// expiry set on the first hit of each window.
type FixedWindow struct {
	rds    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewFixedWindow returns a limiter allowing limit requests per window.
func NewFixedWindow(rds *redis.Client, prefix string, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{rds: rds, prefix: prefix, limit: limit, window: window}
}

// Allow counts one request for caller. When Redis is unreachable the request
// is refused: Allowed is false and the error wraps ErrUnavailable.
func (l *FixedWindow) Allow(ctx context.Context, caller string) (Decision, error) {
	key := l.prefix + caller
	d := Decision{Limit: l.limit}

	count, err := l.rds.Incr(ctx, key).Result()
	if err != nil {
		return d, unavailable("ratelimit incr", err)
	}
	if count == 1 {
		if err := l.rds.Expire(ctx, key, l.window).Err(); err != nil {
			// Without a TTL the key would pin the caller forever.
			l.rds.Del(ctx, key)
			return d, unavailable("ratelimit expire", err)
		}
	}

	ttl, err := l.rds.PTTL(ctx, key).Result()
	switch {
	case err != nil:
		ttl = l.window
	case ttl == -1:
		// Counter has no expiry (EXPIRE lost after INCR): open a new window.
		_ = l.rds.Expire(ctx, key, l.window).Err()
		ttl = l.window
	case ttl < 0:
		ttl = l.window
	}
	d.ResetIn = ttl

	if int(count) > l.limit {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.limit - int(count)
	return d, nil
}
