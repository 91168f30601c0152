package services

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/observability"
	"github.com/tbourn/go-xp-engine/internal/repo"
)

// Leaderboard filters.
const (
	FilterAllTime = "all-time"
	FilterWeek    = "week"
	FilterMonth   = "month"
)

const (
	// LeaderboardMaxLimit is the largest page a caller may request; snapshots
	// are always materialized at this size.
	LeaderboardMaxLimit     = 1000
	LeaderboardDefaultLimit = 100
)

// LeaderboardEntry is one ranked member. Rank is 1-based and contiguous.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	MemberID string `json:"member_id"`
	XP       uint64 `json:"xp"`
	Level    uint32 `json:"level"`
}

// Snapshots is the leaderboard cache.
type Snapshots interface {
	Get(ctx context.Context, tenantID, filter string, dest any) (bool, error)
	Put(ctx context.Context, tenantID, filter string, v any) error
	LeaderboardInvalidator
}

// Leaderboard serves ranked views from the cache, rebuilding them from the
// data store on a miss. Concurrent misses for the same view share one query.
type Leaderboard struct {
	DB    *gorm.DB
	Store LeaderboardStore
	Cache Snapshots

	group singleflight.Group
	now   func() time.Time
}

// NewLeaderboard wires the service. cache may be nil.
func NewLeaderboard(db *gorm.DB, st LeaderboardStore, c Snapshots) *Leaderboard {
	return &Leaderboard{DB: db, Store: st, Cache: c, now: time.Now}
}

// Window maps a filter to the start of its rolling window; all-time has none.
func Window(filter string, now time.Time) (since time.Time, windowed bool, err error) {
	switch filter {
	case FilterAllTime, "":
		return time.Time{}, false, nil
	case FilterWeek:
		return now.AddDate(0, 0, -7), true, nil
	case FilterMonth:
		return now.AddDate(0, -1, 0), true, nil
	}
	return time.Time{}, false, invalid("unknown leaderboard filter %q", filter)
}

// Get returns the top members for the tenant. limit <= 0 means the default;
// limits above LeaderboardMaxLimit are rejected.
func (s *Leaderboard) Get(ctx context.Context, tenantID, filter string, limit int) ([]LeaderboardEntry, error) {
	if filter == "" {
		filter = FilterAllTime
	}
	if _, _, err := Window(filter, time.Time{}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = LeaderboardDefaultLimit
	}
	if limit > LeaderboardMaxLimit {
		return nil, invalid("limit must be at most %d", LeaderboardMaxLimit)
	}

	entries, err := s.snapshot(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Leaderboard) snapshot(ctx context.Context, tenantID, filter string) ([]LeaderboardEntry, error) {
	if s.Cache != nil {
		var cached []LeaderboardEntry
		hit, err := s.Cache.Get(ctx, tenantID, filter, &cached)
		if err != nil {
			observability.CacheDegraded.WithLabelValues("leaderboard_get", "ignored").Inc()
		}
		if hit {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(tenantID+"|"+filter, func() (any, error) {
		entries, err := s.rebuild(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		if s.Cache != nil {
			if err := s.Cache.Put(ctx, tenantID, filter, entries); err != nil {
				observability.CacheDegraded.WithLabelValues("leaderboard_put", "ignored").Inc()
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]LeaderboardEntry), nil
}

func (s *Leaderboard) rebuild(ctx context.Context, tenantID, filter string) ([]LeaderboardEntry, error) {
	since, windowed, err := Window(filter, s.now().UTC())
	if err != nil {
		return nil, err
	}
	var rows []repo.LeaderboardRow
	if windowed {
		rows, err = s.Store.TopMembersSince(ctx, s.DB, tenantID, since, LeaderboardMaxLimit)
	} else {
		rows, err = s.Store.TopMembersAllTime(ctx, s.DB, tenantID, LeaderboardMaxLimit)
	}
	if err != nil {
		return nil, storeErr("load leaderboard", err)
	}
	out := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = LeaderboardEntry{Rank: i + 1, MemberID: r.MemberID, XP: r.XP, Level: r.Level}
	}
	return out, nil
}
