package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL: srv.URL + "/",
		APIKey:  "k_test",
		Timeout: 200 * time.Millisecond,
		Retry:   RetryPolicy{MaxRetries: 3, Base: time.Millisecond, Max: 5 * time.Millisecond},
	})
}

func TestFindActiveMembership(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memberships" || r.URL.Query().Get("user_id") != "u1" || r.URL.Query().Get("company_id") != "t1" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer k_test" {
			t.Errorf("missing auth header")
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"mem_old","status":"expired"},{"id":"mem_1","status":"active","plan_id":"plan_9"}]}`))
	})
	m, err := c.FindActiveMembership(context.Background(), "t1", "u1")
	if err != nil {
		t.Fatalf("FindActiveMembership: %v", err)
	}
	if m == nil || m.ID != "mem_1" || m.PlanID != "plan_9" {
		t.Fatalf("unexpected membership: %+v", m)
	}
}

func TestFindActiveMembership_None(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	m, err := c.FindActiveMembership(context.Background(), "t1", "u1")
	if err != nil || m != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", m, err)
	}
}

func TestExtendMembership_SendsIdempotencyKeyAndRetries503(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.Header.Get("Idempotency-Key") != "idem-1" {
			t.Errorf("idempotency key not forwarded on attempt %d", n)
		}
		if r.URL.Path != "/memberships/mem_1/add_free_days" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["days"] != 3 {
			t.Errorf("unexpected days %v", body)
		}
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"try later"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"ext_42"}`))
	})
	ref, err := c.ExtendMembership(context.Background(), "mem_1", 3, "idem-1")
	if err != nil || ref != "ext_42" {
		t.Fatalf("ExtendMembership = %q, %v", ref, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCreateDiscountCode_404IsPermanent(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"company missing"}`))
	})
	_, err := c.CreateDiscountCode(context.Background(), "t1", "u1", 10, "idem-2")
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 404 || apiErr.Message != "company missing" {
		t.Fatalf("unexpected api error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("404 must not be retried, got %d calls", calls)
	}
}

func TestCreateDiscountCode_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["percent_off"].(float64) != 25 {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"code":"LVL50-ABCD"}`))
	})
	code, err := c.CreateDiscountCode(context.Background(), "t1", "u1", 25, "idem-3")
	if err != nil || code != "LVL50-ABCD" {
		t.Fatalf("CreateDiscountCode = %q, %v", code, err)
	}
}

func TestSendPushNotification_TimeoutIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	c.timeout = 20 * time.Millisecond
	c.retry.MaxRetries = 1

	err := c.SendPushNotification(context.Background(), "t1", "u1", "Level up", "You reached level 5", "idem-4")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient after timeouts, got %v", err)
	}
}

func TestErrorMessage_Fallbacks(t *testing.T) {
	if got := errorMessage(500, []byte(`{"error":"flat"}`)); got != "flat" {
		t.Fatalf("flat error: %q", got)
	}
	if got := errorMessage(502, []byte(`upstream exploded`)); got != "upstream exploded" {
		t.Fatalf("raw text: %q", got)
	}
	if got := errorMessage(503, nil); got != "service unavailable" {
		t.Fatalf("status text: %q", got)
	}
}
