package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore tracks the anti-spam window between two XP awards of one
// member. Entries expire on their own.
type CooldownStore struct {
	rds *redis.Client
	ttl time.Duration
}

// NewCooldownStore returns a store whose entries live for ttl. A zero ttl
// disables cooldowns.
func NewCooldownStore(rds *redis.Client, ttl time.Duration) *CooldownStore {
	return &CooldownStore{rds: rds, ttl: ttl}
}

func (s *CooldownStore) key(tenantID, memberID string) string {
	return "xp:cd:" + tenantID + ":" + memberID
}

// Remaining returns how long the cooldown still runs, or 0 when none is set.
func (s *CooldownStore) Remaining(ctx context.Context, tenantID, memberID string) (time.Duration, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	d, err := s.rds.PTTL(ctx, s.key(tenantID, memberID)).Result()
	if err != nil {
		return 0, unavailable("cooldown pttl", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Start opens a fresh cooldown window for the member.
func (s *CooldownStore) Start(ctx context.Context, tenantID, memberID string) error {
	if s.ttl <= 0 {
		return nil
	}
	if err := s.rds.Set(ctx, s.key(tenantID, memberID), "1", s.ttl).Err(); err != nil {
		return unavailable("cooldown set", err)
	}
	return nil
}
