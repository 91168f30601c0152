// Package services holds the engine's business logic: XP awards, milestone
// rewards, membership bookkeeping, leaderboards and webhook ingress.
// This file centralizes the service-level error taxonomy so handlers can map
// outcomes to HTTP results consistently.
//
// Business-expected outcomes (duplicate delivery, no reward configured, no
// active subscription) are returned as results with status flags, never as
// errors. Only CooldownError is an error that is also an expected outcome,
// because callers must be able to branch on it with errors.As.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-xp-engine/internal/cache"
)

var (
	// ErrValidation marks malformed input. It is never retried.
	ErrValidation = errors.New("validation failed")

	// ErrMemberNotFound indicates the member has no record in the tenant yet.
	ErrMemberNotFound = errors.New("member not found")

	// ErrCacheUnavailable aliases cache.ErrUnavailable so callers can test for
	// it without importing the cache package.
	ErrCacheUnavailable = cache.ErrUnavailable
)

// CooldownError is returned by AwardXp when the member earned XP too recently.
// Nothing was written.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("member is on cooldown for another %s", e.Remaining.Round(time.Second))
}

// DataStoreError wraps a persistence failure. It is fatal for the current
// request and always escalated.
type DataStoreError struct {
	Op  string
	Err error
}

func (e *DataStoreError) Error() string { return "data store: " + e.Op + ": " + e.Err.Error() }

func (e *DataStoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DataStoreError{Op: op, Err: err}
}

// invalid wraps ErrValidation with a message suitable for API clients.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsDataStoreError reports whether err carries a DataStoreError.
func IsDataStoreError(err error) bool {
	var ds *DataStoreError
	return errors.As(err, &ds)
}
