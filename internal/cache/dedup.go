package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses repeated processing of an event id. Claim is a single
// SET NX so two concurrent deliveries of the same id cannot both win.
type Deduper struct {
	rds    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDeduper returns a Deduper namespaced by prefix, e.g. "dedup:webhook:".
func NewDeduper(rds *redis.Client, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{rds: rds, prefix: prefix, ttl: ttl}
}

// Claim marks id as seen. It returns true when this call created the entry
// and false when the id was already present.
func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.rds.SetNX(ctx, d.prefix+id, "1", d.ttl).Result()
	if err != nil {
		return false, unavailable("dedup setnx", err)
	}
	return ok, nil
}

// Release forgets id so a later redelivery is processed again. Used when
// processing was rejected before any state changed.
func (d *Deduper) Release(ctx context.Context, id string) error {
	if err := d.rds.Del(ctx, d.prefix+id).Err(); err != nil {
		return unavailable("dedup del", err)
	}
	return nil
}
