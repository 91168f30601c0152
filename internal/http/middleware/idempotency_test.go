package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/observability"
)

func idemRouter(t *testing.T, store KeyClaimer, status *int, hits *int32) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.POST("/xp/award", Idempotency(store), func(c *gin.Context) {
		atomic.AddInt32(hits, 1)
		if k, ok := GetIdempotencyKey(c); ok && IsReplay(c) {
			t.Errorf("replay reached handler with key %q", k)
		}
		c.JSON(*status, gin.H{"ok": *status < 400})
	})
	return r
}

func post(r http.Handler, key, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/xp/award", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	if apiKey != "" {
		req.Header.Set(HeaderAPIKey, apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_DuplicateShortCircuits(t *testing.T) {
	_, rds := newRedis(t)
	status, hits := http.StatusOK, int32(0)
	r := idemRouter(t, cache.NewDeduper(rds, "idem:", 5*time.Minute), &status, &hits)

	if w := post(r, "k-1", "svc"); w.Code != http.StatusOK {
		t.Fatalf("first call status=%d", w.Code)
	}
	w := post(r, "k-1", "svc")
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate status=%d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "duplicate" || body["idempotency_key"] != "k-1" {
		t.Fatalf("unexpected duplicate body: %v", body)
	}
	if hits != 1 {
		t.Fatalf("handler ran %d times; want 1", hits)
	}

	// Same key from another caller is independent.
	if post(r, "k-1", "other"); hits != 2 {
		t.Fatalf("keys must be scoped by caller; hits=%d", hits)
	}
	// No key means no deduplication.
	post(r, "", "svc")
	post(r, "", "svc")
	if hits != 4 {
		t.Fatalf("keyless requests must always run; hits=%d", hits)
	}
}

func TestIdempotency_FailureReleasesKey(t *testing.T) {
	_, rds := newRedis(t)
	status, hits := http.StatusTooManyRequests, int32(0)
	r := idemRouter(t, cache.NewDeduper(rds, "idem:", 5*time.Minute), &status, &hits)

	post(r, "retry-me", "svc")
	status = http.StatusOK
	if w := post(r, "retry-me", "svc"); w.Code != http.StatusOK || hits != 2 {
		t.Fatalf("retry after failure must run the handler; code=%d hits=%d", w.Code, hits)
	}
	post(r, "retry-me", "svc")
	if hits != 2 {
		t.Fatalf("successful key must now be held; hits=%d", hits)
	}
}

func TestIdempotency_RejectsMalformedKeys(t *testing.T) {
	_, rds := newRedis(t)
	status, hits := http.StatusOK, int32(0)
	r := idemRouter(t, cache.NewDeduper(rds, "idem:", time.Minute), &status, &hits)

	for _, k := range []string{"has space", "semi;colon", strings.Repeat("k", maxIdempotencyKeyLen+1)} {
		if w := post(r, k, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status=%d", k, w.Code)
		}
	}
	if hits != 0 {
		t.Fatalf("handler must not run for malformed keys")
	}
}

func TestIdempotency_CacheOutageFailsOpen(t *testing.T) {
	mr, rds := newRedis(t)
	status, hits := http.StatusOK, int32(0)
	r := idemRouter(t, cache.NewDeduper(rds, "idem:", time.Minute), &status, &hits)
	mr.Close()

	before := testutil.ToFloat64(observability.CacheDegraded.WithLabelValues("idempotency", "open"))
	post(r, "k", "")
	post(r, "k", "")
	if hits != 2 {
		t.Fatalf("requests must be processed during an outage; hits=%d", hits)
	}
	if got := testutil.ToFloat64(observability.CacheDegraded.WithLabelValues("idempotency", "open")); got != before+2 {
		t.Fatalf("degraded counter = %v; want %v", got, before+2)
	}
}
