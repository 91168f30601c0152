// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key handling for the internal award API.
//
// Behavior:
//   - Header "Idempotency-Key" is optional. When absent the request proceeds.
//   - When present it must match ^[A-Za-z0-9._~\-:]+$ and be at most 200
//     bytes; otherwise the request is rejected with 400 before any work.
//   - The key is claimed in the shared cache, scoped by caller and route, for
//     a fixed window. A request whose key was already claimed is answered
//     with 200 {"status":"duplicate"} and is not counted by the rate limiter.
//   - When the handler ends with a status >= 400 the claim is released, so
//     a client can retry the same key after fixing the problem (or once a
//     cooldown has passed).
//   - Cache outages fail open: the request is processed as if new.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/observability"
)

const (
	// HeaderIdempotencyKey is the canonical header name.
	HeaderIdempotencyKey = "Idempotency-Key"

	ctxKeyIdemKey     = "idem.key"
	ctxKeyIdemReplay  = "idem.replay"
	ctxKeyRateLimitBy = "rate.bypass"

	maxIdempotencyKeyLen = 200
)

var idemKeyRE = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// KeyClaimer records that a key has been seen. cache.Deduper satisfies it.
type KeyClaimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Idempotency returns the Idempotency-Key middleware backed by store.
func Idempotency(store KeyClaimer) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen || !idemKeyRE.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "invalid_idempotency_key",
				"message": "Idempotency-Key must be 1-200 chars of [A-Za-z0-9._~-:]",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		scoped := callerKey(c) + "|" + c.FullPath() + "|" + key
		ctx := c.Request.Context()

		fresh, err := store.Claim(ctx, scoped)
		if err != nil {
			observability.CacheDegraded.WithLabelValues("idempotency", "open").Inc()
			LoggerFrom(c).Warn().Err(err).Msg("idempotency cache unavailable; processing request")
			c.Next()
			return
		}
		if !fresh {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateLimitBy, true)
			c.AbortWithStatusJSON(http.StatusOK, gin.H{
				"status":          "duplicate",
				"idempotency_key": key,
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil && !errors.Is(err, context.Canceled) {
				LoggerFrom(c).Warn().Err(err).Msg("release idempotency key")
			}
		}
	}
}

// GetIdempotencyKey returns the validated key stored in the context.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsReplay reports whether the request was answered as a duplicate.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
