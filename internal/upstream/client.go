// Package upstream is the client for the partner platform API: membership
// lookup and extension, discount codes and push notifications. None of those
// operations is idempotent on the partner side, so every mutating call
// carries an Idempotency-Key chosen by the caller and is driven through
// CallWithRetry with a per-attempt timeout.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// APIError is a non-2xx answer from the partner API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("partner api: status %d: %s", e.Status, e.Message)
}

// Membership is the subset of a partner membership the engine needs.
type Membership struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	PlanID string `json:"plan_id"`
}

// Options configures New.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each attempt, not the whole retried call.
	Timeout time.Duration
	// RPS throttles outgoing requests across all callers of the client.
	RPS   float64
	Retry RetryPolicy

	HTTPClient *http.Client
}

// Client talks to the partner API. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	retry   RetryPolicy
	limiter *rate.Limiter
	http    *http.Client
}

// New builds a Client.
func New(o Options) *Client {
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if o.RPS > 0 {
		burst := int(o.RPS)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		apiKey:  o.APIKey,
		timeout: o.Timeout,
		retry:   o.Retry,
		limiter: lim,
		http:    hc,
	}
}

// FindActiveMembership returns the member's active membership in the tenant,
// or (nil, nil) when there is none.
func (c *Client) FindActiveMembership(ctx context.Context, tenantID, memberID string) (*Membership, error) {
	q := url.Values{}
	q.Set("company_id", tenantID)
	q.Set("user_id", memberID)
	q.Set("status", "active")

	return CallWithRetry(ctx, c.retry, func(ctx context.Context) (*Membership, error) {
		var page struct {
			Data []Membership `json:"data"`
		}
		if err := c.do(ctx, http.MethodGet, "/memberships?"+q.Encode(), "", nil, &page); err != nil {
			return nil, err
		}
		for i := range page.Data {
			if page.Data[i].Status == "active" {
				return &page.Data[i], nil
			}
		}
		return nil, nil
	})
}

// ExtendMembership adds free days to a membership and returns the partner's
// reference for the change.
func (c *Client) ExtendMembership(ctx context.Context, membershipID string, days int, idemKey string) (string, error) {
	body := map[string]any{"days": days}
	return CallWithRetry(ctx, c.retry, func(ctx context.Context) (string, error) {
		var out struct {
			ID string `json:"id"`
		}
		path := "/memberships/" + url.PathEscape(membershipID) + "/add_free_days"
		if err := c.do(ctx, http.MethodPost, path, idemKey, body, &out); err != nil {
			return "", err
		}
		return out.ID, nil
	})
}

// CreateDiscountCode creates a single-use promo code for the member and
// returns the code.
func (c *Client) CreateDiscountCode(ctx context.Context, tenantID, memberID string, percent int, idemKey string) (string, error) {
	body := map[string]any{
		"company_id":  tenantID,
		"user_id":     memberID,
		"percent_off": percent,
		"stock":       1,
	}
	return CallWithRetry(ctx, c.retry, func(ctx context.Context) (string, error) {
		var out struct {
			Code string `json:"code"`
		}
		if err := c.do(ctx, http.MethodPost, "/promo_codes", idemKey, body, &out); err != nil {
			return "", err
		}
		return out.Code, nil
	})
}

// SendPushNotification delivers a push message to the member.
func (c *Client) SendPushNotification(ctx context.Context, tenantID, memberID, title, content, idemKey string) error {
	body := map[string]any{
		"company_id": tenantID,
		"user_id":    memberID,
		"title":      title,
		"content":    content,
	}
	_, err := CallWithRetry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPost, "/notifications", idemKey, body, nil)
	})
	return err
}

// do performs one attempt bounded by the client timeout.
func (c *Client) do(ctx context.Context, method, path, idemKey string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("partner api timeout after %s: %w", c.timeout, err)
		}
		return fmt.Errorf("partner api request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human message out of whatever error shape the partner
// returned.
func errorMessage(status int, raw []byte) string {
	for _, path := range []string{"error.message", "message", "error"} {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 256 {
		return s
	}
	return strings.ToLower(http.StatusText(status))
}
