// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a fixed-window rate limiter whose counters live in the
// shared cache, so every replica enforces the same budget.
//
// Features:
//   - Pluggable key extraction (API key or client IP).
//   - X-RateLimit-Limit / X-RateLimit-Remaining / X-RateLimit-Reset headers on
//     every limited route, Retry-After on 429.
//   - Requests already answered as idempotent replays are not counted.
//   - Fails closed: when the cache is unreachable the request is refused.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/observability"
)

// HeaderAPIKey identifies internal API callers.
const HeaderAPIKey = "X-Api-Key"

// Limiter decides whether caller may make one more request.
// cache.FixedWindow satisfies it.
type Limiter interface {
	Allow(ctx context.Context, caller string) (cache.Decision, error)
}

// KeyFunc extracts the rate limiting key from the request.
type KeyFunc func(*gin.Context) string

// KeyByIP keys requests by client IP.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// KeyByAPIKeyOrIP prefers the X-Api-Key header and falls back to client IP.
func KeyByAPIKeyOrIP() KeyFunc {
	return func(c *gin.Context) string { return callerKey(c) }
}

func callerKey(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader(HeaderAPIKey)); k != "" {
		return "key:" + k
	}
	return "ip:" + c.ClientIP()
}

// IsRateBypass reports whether an earlier middleware exempted this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateLimitBy)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RateLimit returns the middleware enforcing l per key.
func RateLimit(l Limiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = KeyByIP()
	}
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		d, err := l.Allow(c.Request.Context(), key(c))
		if err != nil {
			observability.CacheDegraded.WithLabelValues("ratelimit", "closed").Inc()
			LoggerFrom(c).Warn().Err(err).Msg("rate limiter unavailable; refusing request")
			tooMany(c, d.Limit, time.Second)
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(d.ResetIn)))

		if !d.Allowed {
			tooMany(c, d.Limit, d.ResetIn)
			return
		}
		c.Next()
	}
}

func tooMany(c *gin.Context, limit int, retryIn time.Duration) {
	secs := ceilSeconds(retryIn)
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"request_id":  c.Writer.Header().Get(requestIDHeader),
		"code":        "rate_limited",
		"message":     "rate limit exceeded",
		"limit":       limit,
		"retry_after": secs,
	})
}

// ceilSeconds rounds d up to whole seconds, minimum 1.
func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
