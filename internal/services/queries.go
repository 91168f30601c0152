// Package services – Queries
//
// Queries backs the read-side and tenant admin endpoints: member progress,
// reward history, operator lists of undelivered rewards and the tenant's
// scoring and reward tables. Tenant settings are read on demand by the
// engine, so saving them invalidates nothing.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/leveling"
)

const maxTenantXp = 1000

// MemberProgress is a member's standing inside its tenant.
type MemberProgress struct {
	TenantID       string     `json:"tenant_id"`
	MemberID       string     `json:"member_id"`
	MessageCount   uint64     `json:"message_count"`
	PostCount      uint64     `json:"post_count"`
	ReactionCount  uint64     `json:"reaction_count"`
	Tier           string     `json:"tier"`
	Active         bool       `json:"membership_active"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	leveling.Progress
}

// Queries serves read and admin operations.
type Queries struct {
	DB      *gorm.DB
	Store   QueryStore
	Rewards *RewardDispatcher
}

// NewQueries wires the service. rewards supplies the effective milestone table.
func NewQueries(db *gorm.DB, st QueryStore, rewards *RewardDispatcher) *Queries {
	return &Queries{DB: db, Store: st, Rewards: rewards}
}

// Progress returns the member's XP standing or ErrMemberNotFound.
func (s *Queries) Progress(ctx context.Context, tenantID, memberID string) (*MemberProgress, error) {
	m, err := s.Store.GetMember(ctx, s.DB, tenantID, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, storeErr("get member", err)
	}
	return &MemberProgress{
		TenantID:       m.TenantID,
		MemberID:       m.MemberID,
		MessageCount:   m.MessageCount,
		PostCount:      m.PostCount,
		ReactionCount:  m.ReactionCount,
		Tier:           m.Tier,
		Active:         m.MembershipActive,
		LastActivityAt: m.LastActivityAt,
		Progress:       leveling.ProgressFor(m.XP),
	}, nil
}

// MemberRewards lists a member's reward records, highest level first.
func (s *Queries) MemberRewards(ctx context.Context, tenantID, memberID string) ([]domain.RewardRecord, error) {
	out, err := s.Store.ListMemberRewards(ctx, s.DB, tenantID, memberID)
	if err != nil {
		return nil, storeErr("list member rewards", err)
	}
	return out, nil
}

// RewardsStats returns the count and newest timestamp of a member's rewards,
// for cache validators.
func (s *Queries) RewardsStats(ctx context.Context, tenantID, memberID string) (int64, *time.Time, error) {
	n, newest, err := s.Store.RewardsStats(ctx, s.DB, tenantID, memberID)
	return n, newest, storeErr("reward stats", err)
}

// UndeliveredRewards returns a page of failed rewards and the total count.
func (s *Queries) UndeliveredRewards(ctx context.Context, tenantID string, page, pageSize int) ([]domain.RewardRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Store.CountUndeliveredRewards(ctx, s.DB, tenantID)
	if err != nil {
		return nil, 0, storeErr("count undelivered rewards", err)
	}
	if total == 0 {
		return []domain.RewardRecord{}, 0, nil
	}
	items, err := s.Store.ListUndeliveredRewardsPage(ctx, s.DB, tenantID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, storeErr("list undelivered rewards", err)
	}
	return items, total, nil
}

// XpConfig returns the tenant's overrides; unset fields are nil.
func (s *Queries) XpConfig(ctx context.Context, tenantID string) (*domain.TenantXpConfig, error) {
	cfg, err := s.Store.GetTenantXpConfig(ctx, s.DB, tenantID)
	if err != nil {
		return nil, storeErr("get tenant xp config", err)
	}
	if cfg == nil {
		cfg = &domain.TenantXpConfig{TenantID: tenantID}
	}
	return cfg, nil
}

// SaveXpConfig validates and stores the tenant's overrides.
func (s *Queries) SaveXpConfig(ctx context.Context, cfg *domain.TenantXpConfig) error {
	if err := ValidateXpConfig(cfg); err != nil {
		return err
	}
	return storeErr("save tenant xp config", s.Store.SaveTenantXpConfig(ctx, s.DB, cfg))
}

// ValidateXpConfig checks every set field is within [0,1000] and that the
// post range is ordered when both ends are set.
func ValidateXpConfig(cfg *domain.TenantXpConfig) error {
	fields := []struct {
		name string
		v    *int
	}{
		{"xp_per_message", cfg.XpPerMessage},
		{"min_xp_per_post", cfg.MinXpPerPost},
		{"max_xp_per_post", cfg.MaxXpPerPost},
		{"xp_per_reaction", cfg.XpPerReaction},
	}
	for _, f := range fields {
		if f.v != nil && (*f.v < 0 || *f.v > maxTenantXp) {
			return invalid("%s must be between 0 and %d", f.name, maxTenantXp)
		}
	}
	if cfg.MinXpPerPost != nil && cfg.MaxXpPerPost != nil && *cfg.MinXpPerPost > *cfg.MaxXpPerPost {
		return invalid("min_xp_per_post must not exceed max_xp_per_post")
	}
	return nil
}

// RewardTable returns the effective milestone table for the tenant.
func (s *Queries) RewardTable(ctx context.Context, tenantID string) ([]Reward, error) {
	return s.Rewards.RewardTable(ctx, tenantID)
}

// ReplaceRewardTable validates and stores the tenant's milestone table. An
// empty table restores the defaults.
func (s *Queries) ReplaceRewardTable(ctx context.Context, tenantID string, table []Reward) error {
	seen := make(map[uint32]bool, len(table))
	rows := make([]domain.TenantReward, 0, len(table))
	for _, r := range table {
		if r.Level < 2 {
			return invalid("reward level must be at least 2")
		}
		if seen[r.Level] {
			return invalid("duplicate reward level %d", r.Level)
		}
		seen[r.Level] = true
		switch r.Type {
		case domain.RewardFreeDays:
			if r.Value < 1 || r.Value > 365 {
				return invalid("free_days must be between 1 and 365")
			}
		case domain.RewardDiscountPercent:
			if r.Value < 1 || r.Value > 100 {
				return invalid("discount_percent must be between 1 and 100")
			}
		default:
			return invalid("unknown reward type %q", r.Type)
		}
		rows = append(rows, domain.TenantReward{TenantID: tenantID, Level: r.Level, RewardType: r.Type, RewardValue: r.Value})
	}
	return storeErr("replace tenant rewards", s.Store.ReplaceTenantRewards(ctx, s.DB, tenantID, rows))
}
