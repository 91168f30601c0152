// Package cache holds the Redis-backed short-lived state of the engine:
// member cooldowns, event de-duplication, fixed-window rate limit counters,
// leaderboard snapshots and reward claim leases.
//
// Every store wraps one *redis.Client constructed once per process by
// NewClient and passed in explicitly. Redis failures are reported wrapped in
// ErrUnavailable; each caller decides whether that means fail open or fail
// closed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable marks a Redis round-trip that failed.
var ErrUnavailable = errors.New("cache unavailable")

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// Options configures NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials Redis and verifies the connection with PING.
func NewClient(ctx context.Context, o Options) (*redis.Client, error) {
	rds := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := rds.Ping(ctx).Err(); err != nil {
		_ = rds.Close()
		return nil, fmt.Errorf("connect redis %s: %w", o.Addr, err)
	}
	return rds, nil
}
