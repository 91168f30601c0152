package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/observability"
)

func TestKeyFuncs(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "1234")

	if got := KeyByAPIKeyOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("fallback key = %q", got)
	}
	c.Request.Header.Set(HeaderAPIKey, "svc-a")
	if got := KeyByAPIKeyOrIP()(c); got != "key:svc-a" {
		t.Fatalf("api key = %q", got)
	}
	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("ip key = %q", got)
	}
}

func TestRateLimit_FixedWindow(t *testing.T) {
	mr, rds := newRedis(t)
	r := gin.New()
	r.Use(RequestID())
	r.Use(RateLimit(cache.NewFixedWindow(rds, "rl:", 2, time.Minute), KeyByIP()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = net.JoinHostPort(ip, "1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call("198.51.100.1")
	if w.Code != http.StatusNoContent || w.Header().Get("X-RateLimit-Limit") != "2" || w.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("first: %d %v", w.Code, w.Header())
	}
	call("198.51.100.1")
	w = call("198.51.100.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third call status=%d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("missing throttle headers: %v", w.Header())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body["code"] != "rate_limited" || body["message"] != "rate limit exceeded" {
		t.Fatalf("429 body = %v", body)
	}
	if rid := w.Header().Get(requestIDHeader); rid == "" || body["request_id"] != rid {
		t.Fatalf("request_id = %v; header %q", body["request_id"], rid)
	}
	if call("198.51.100.2").Code != http.StatusNoContent {
		t.Fatal("other callers have their own window")
	}

	mr.FastForward(61 * time.Second)
	if call("198.51.100.1").Code != http.StatusNoContent {
		t.Fatal("window must reset")
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (cache.Decision, error) {
	return cache.Decision{Limit: 5}, errors.New("dial tcp: connection refused")
}

func TestRateLimit_FailsClosed(t *testing.T) {
	_ = withCapturedLogger(t)
	before := testutil.ToFloat64(observability.CacheDegraded.WithLabelValues("ratelimit", "closed"))

	r := gin.New()
	r.Use(RateLimit(brokenLimiter{}, nil))
	r.GET("/x", func(c *gin.Context) { t.Error("handler must not run") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
	if got := testutil.ToFloat64(observability.CacheDegraded.WithLabelValues("ratelimit", "closed")); got != before+1 {
		t.Fatalf("degraded counter = %v", got)
	}
}

func TestRateLimit_BypassForReplays(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateLimitBy, true); c.Next() })
	r.Use(RateLimit(brokenLimiter{}, nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("bypassed request status=%d", w.Code)
	}
}

func TestCeilSeconds(t *testing.T) {
	for d, want := range map[time.Duration]int{0: 1, 300 * time.Millisecond: 1, 1500 * time.Millisecond: 2, time.Minute: 60} {
		if got := ceilSeconds(d); got != want {
			t.Fatalf("ceilSeconds(%v) = %d; want %d", d, got, want)
		}
	}
}
