package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrTransient marks a failure that was retried until the policy gave up.
	ErrTransient = errors.New("upstream transient failure")
	// ErrPermanent marks a failure that retrying cannot fix.
	ErrPermanent = errors.New("upstream permanent failure")
)

// RetryPolicy controls CallWithRetry. Delays grow Base, 2·Base, 4·Base ...
// capped at Max, each randomized by ±Jitter.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
	Jitter     float64

	// Notify, when set, observes every failed attempt that will be retried
	// together with the delay before the next one.
	Notify func(err error, next time.Duration)
}

// DefaultRetryPolicy is 3 retries from 1s doubling to at most 10s, ±30%.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Base: time.Second, Max: 10 * time.Second, Jitter: 0.3}
}

var nonRetryableWords = []string{"unauthorized", "forbidden", "invalid", "not found"}

// IsRetryable classifies an upstream error. 4xx responses other than 429 and
// errors whose message names an auth or validation problem are final;
// everything else (5xx, 429, timeouts, network errors) may be retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests {
			return true
		}
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, w := range nonRetryableWords {
		if strings.Contains(msg, w) {
			return false
		}
	}
	return true
}

// CallWithRetry runs op until it succeeds, fails with a non-retryable error
// or the policy is exhausted. The returned error wraps ErrPermanent or
// ErrTransient together with the last underlying error.
func CallWithRetry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Base,
		RandomizationFactor: p.Jitter,
		Multiplier:          2,
		MaxInterval:         p.Max,
	}
	b.Reset()

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries + 1)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(p.Notify))
	}

	permanent := false
	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !IsRetryable(err) {
			permanent = true
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
	if err == nil {
		return res, nil
	}
	if permanent {
		return res, fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return res, fmt.Errorf("%w: %w", ErrTransient, err)
}
