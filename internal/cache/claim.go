package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RewardClaims is a short lease taken before a milestone reward is sent
// upstream, so concurrent duplicate level-ups do not both call the partner.
// The unique index on reward records stays the durable guarantee; the lease
// only narrows the window in which two calls could race.
type RewardClaims struct {
	rds *redis.Client
	ttl time.Duration
}

// NewRewardClaims returns leases that expire after ttl, which should exceed
// the longest upstream attempt including retries.
func NewRewardClaims(rds *redis.Client, ttl time.Duration) *RewardClaims {
	return &RewardClaims{rds: rds, ttl: ttl}
}

func (r *RewardClaims) key(tenantID, memberID string, level uint32) string {
	return "reward:claim:" + tenantID + ":" + memberID + ":" + strconv.FormatUint(uint64(level), 10)
}

// Acquire returns true when the caller now holds the lease.
func (r *RewardClaims) Acquire(ctx context.Context, tenantID, memberID string, level uint32) (bool, error) {
	ok, err := r.rds.SetNX(ctx, r.key(tenantID, memberID, level), "1", r.ttl).Result()
	if err != nil {
		return false, unavailable("claim setnx", err)
	}
	return ok, nil
}

// Release drops the lease.
func (r *RewardClaims) Release(ctx context.Context, tenantID, memberID string, level uint32) error {
	if err := r.rds.Del(ctx, r.key(tenantID, memberID, level)).Err(); err != nil {
		return unavailable("claim del", err)
	}
	return nil
}
