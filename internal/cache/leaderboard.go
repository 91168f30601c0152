package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardFilters are the snapshot variants kept per tenant.
var LeaderboardFilters = []string{"all-time", "week", "month"}

// LeaderboardCache stores ranked snapshots as JSON, keyed by tenant and
// filter. It is a soft-consistency read path only.
type LeaderboardCache struct {
	rds *redis.Client
	ttl time.Duration
}

// NewLeaderboardCache returns a cache whose snapshots live for ttl.
func NewLeaderboardCache(rds *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{rds: rds, ttl: ttl}
}

func (c *LeaderboardCache) key(tenantID, filter string) string {
	return "lb:" + tenantID + ":" + filter
}

// Get decodes the snapshot into dest. It reports false on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, tenantID, filter string, dest any) (bool, error) {
	raw, err := c.rds.Get(ctx, c.key(tenantID, filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("leaderboard get", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt snapshot is a miss; the next Put overwrites it.
		return false, nil
	}
	return true, nil
}

// Put stores a snapshot.
func (c *LeaderboardCache) Put(ctx context.Context, tenantID, filter string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.rds.Set(ctx, c.key(tenantID, filter), raw, c.ttl).Err(); err != nil {
		return unavailable("leaderboard set", err)
	}
	return nil
}

// Invalidate drops every filter variant for the tenant.
func (c *LeaderboardCache) Invalidate(ctx context.Context, tenantID string) error {
	keys := make([]string, 0, len(LeaderboardFilters))
	for _, f := range LeaderboardFilters {
		keys = append(keys, c.key(tenantID, f))
	}
	if err := c.rds.Del(ctx, keys...).Err(); err != nil {
		return unavailable("leaderboard del", err)
	}
	return nil
}
