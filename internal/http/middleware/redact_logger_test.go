package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-xp-engine/internal/cache"
)

func lastLine(t *testing.T, s string) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestRedactingLogger_MasksCredentialsAndPII(t *testing.T) {
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/tenants/:tenantId/members/:memberId", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=a.b+tag@example.com&id=123e4567-e89b-12d3-a456-426614174000&sig=" + strings.Repeat("ab", 32)
	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/members/m1?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Signature", "v1="+strings.Repeat("cd", 32))
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Custom", "mail a@b.com phone 555-123-4567")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	out := buf.String()
	for _, leak := range []string{"secret", "shhh", "a.b+tag@example.com", "a@b.com", "123e4567", strings.Repeat("ab", 32), strings.Repeat("cd", 32)} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q: %s", leak, out)
		}
	}
	m := lastLine(t, out)
	if m["level"] != "info" || m["message"] != "http_request" {
		t.Fatalf("unexpected level/message: %v", m)
	}
	if m["tenant_id"] != "t1" || m["path"] != "/tenants/:tenantId/members/:memberId" {
		t.Fatalf("request fields missing: %v", m)
	}
	if m["request_id"] == "" {
		t.Fatalf("request_id missing: %v", m)
	}
	h := m["headers"].(map[string]any)
	if h["X-Api-Key"] != "[REDACTED]" || h["X-Signature"] != "[REDACTED]" {
		t.Fatalf("headers not masked: %v", h)
	}
	if !strings.Contains(h["X-Custom"].(string), "[REDACTED:email]") {
		t.Fatalf("pattern redaction missing: %v", h["X-Custom"])
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}
	for _, tc := range cases {
		buf := withCapturedLogger(t)
		r := gin.New()
		r.Use(RedactingLogger(RedactOptions{}))
		r.GET("/s", func(c *gin.Context) { c.Status(tc.status) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/s", nil))
		if got := lastLine(t, buf.String())["level"]; got != tc.level {
			t.Fatalf("status %d logged at %v; want %s", tc.status, got, tc.level)
		}
	}
}

func TestRedactingLogger_RecordsIdempotencyReplay(t *testing.T) {
	buf := withCapturedLogger(t)
	_, rds := newRedis(t)
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/award", Idempotency(cache.NewDeduper(rds, "idem:", time.Hour)), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func() map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/award", nil)
		req.Header.Set(HeaderIdempotencyKey, "evt-42")
		r.ServeHTTP(httptest.NewRecorder(), req)
		return lastLine(t, buf.String())
	}

	if m := send(); m["idempotency_key"] != "evt-42" || m["replay"] != false {
		t.Fatalf("first request fields: %v", m)
	}
	if m := send(); m["idempotency_key"] != "evt-42" || m["replay"] != true || m["status"] != float64(http.StatusOK) {
		t.Fatalf("replay fields: %v", m)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/award", nil))
	if m := lastLine(t, buf.String()); m["idempotency_key"] != nil || m["replay"] != nil {
		t.Fatalf("keyless request must not carry idempotency fields: %v", m)
	}
}

func TestRedactingLogger_AttachesLoggerToRequestContext(t *testing.T) {
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/tenants/:tenantId/x", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		LoggerFrom(c).Info().Msg("from handler")
		c.Status(http.StatusNoContent)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tenants/acme/x", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected service, handler and access lines, got %d: %s", len(lines), buf.String())
	}
	for i, want := range []string{"from service", "from handler"} {
		if !strings.Contains(lines[i], `"tenant_id":"acme"`) || !strings.Contains(lines[i], want) {
			t.Fatalf("line %d missing request fields: %s", i, lines[i])
		}
	}
}
