// Package services – XPEngine
//
// XPEngine turns one qualifying activity into an XP award. It enforces the
// per-member cooldown, resolves the award amount from the tenant's overrides
// (field by field, falling back to the global defaults), applies the award as
// a single store-side increment and reports whether the member levelled up.
//
// Cache failure policy: the cooldown fails open. A cooldown read that errors
// is counted and logged, and the award proceeds.
package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/observability"
)

// Cooldowns is the cooldown half of the cache used by XPEngine.
type Cooldowns interface {
	Remaining(ctx context.Context, tenantID, memberID string) (time.Duration, error)
	Start(ctx context.Context, tenantID, memberID string) error
}

// LeaderboardInvalidator drops cached leaderboard snapshots for a tenant.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// XpDefaults are the global award amounts used when a tenant does not
// override a field.
type XpDefaults struct {
	Message  int
	PostMin  int
	PostMax  int
	Reaction int
}

// DefaultXpRates returns message 20, post 15..25, reaction 5.
func DefaultXpRates() XpDefaults {
	return XpDefaults{Message: 20, PostMin: 15, PostMax: 25, Reaction: 5}
}

// AwardResult is the outcome of a successful AwardXp call.
type AwardResult struct {
	Awarded   uint64 `json:"awarded"`
	TotalXP   uint64 `json:"total_xp"`
	LeveledUp bool   `json:"leveled_up"`
	OldLevel  uint32 `json:"old_level"`
	NewLevel  uint32 `json:"new_level"`
}

// XPEngine computes and persists XP awards.
type XPEngine struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the persistence contract, usually RepoStore.
	Store XPStore

	Cooldowns    Cooldowns
	Leaderboards LeaderboardInvalidator
	Tasks        *Detached
	IDs          *snowflake.Node

	Defaults XpDefaults

	now   func() time.Time
	randN func(n int) int
}

// NewXPEngine wires an engine with the default rates. leaderboards may be nil.
func NewXPEngine(db *gorm.DB, st XPStore, cd Cooldowns, lb LeaderboardInvalidator, tasks *Detached, ids *snowflake.Node) *XPEngine {
	return &XPEngine{
		DB:           db,
		Store:        st,
		Cooldowns:    cd,
		Leaderboards: lb,
		Tasks:        tasks,
		IDs:          ids,
		Defaults:     DefaultXpRates(),
		now:          time.Now,
		randN:        rand.IntN,
	}
}

// AwardXp awards XP for one activity. It returns *CooldownError, without
// writing anything, when the member is inside the cooldown window.
func (s *XPEngine) AwardXp(ctx context.Context, tenantID, memberID string, activity domain.ActivityType) (*AwardResult, error) {
	ctx, span := observability.Tracer("services/xp").Start(ctx, "XPEngine.AwardXp")
	defer span.End()
	span.SetAttributes(observability.MemberAttrs(tenantID, memberID)...)
	span.SetAttributes(attribute.String("activity.type", string(activity)))

	if tenantID == "" || memberID == "" {
		return nil, invalid("tenant id and member id are required")
	}
	if _, err := domain.ParseActivityType(string(activity)); err != nil {
		return nil, invalid("%v", err)
	}
	lg := observability.Logger(ctx)

	remaining, err := s.Cooldowns.Remaining(ctx, tenantID, memberID)
	switch {
	case err != nil:
		observability.CacheDegraded.WithLabelValues("cooldown_check", "open").Inc()
		lg.Warn().Err(err).Str("tenant_id", tenantID).Str("member_id", memberID).Msg("cooldown check failed; allowing award")
	case remaining > 0:
		observability.AwardOutcomes.WithLabelValues(string(activity), "cooldown").Inc()
		return nil, &CooldownError{Remaining: remaining}
	}

	amount, err := s.resolveAmount(ctx, tenantID, activity)
	if err != nil {
		observability.AwardOutcomes.WithLabelValues(string(activity), "error").Inc()
		observability.SpanError(span, "tenant config", err)
		return nil, err
	}

	now := s.now().UTC()
	award, err := s.Store.ApplyAward(ctx, s.DB, tenantID, memberID, activity, amount, now)
	if err != nil {
		observability.AwardOutcomes.WithLabelValues(string(activity), "error").Inc()
		observability.SpanError(span, "apply award", err)
		return nil, storeErr("apply award", err)
	}

	s.logActivity(ctx, tenantID, memberID, activity, amount, now)

	if err := s.Cooldowns.Start(ctx, tenantID, memberID); err != nil {
		observability.CacheDegraded.WithLabelValues("cooldown_start", "ignored").Inc()
		lg.Warn().Err(err).Str("member_id", memberID).Msg("could not start cooldown")
	}
	s.invalidateLeaderboard(ctx, tenantID)

	res := &AwardResult{
		Awarded:   amount,
		TotalXP:   award.Member.XP,
		LeveledUp: award.NewLevel > award.OldLevel,
		OldLevel:  award.OldLevel,
		NewLevel:  award.NewLevel,
	}

	observability.AwardOutcomes.WithLabelValues(string(activity), "awarded").Inc()
	observability.XPGranted.WithLabelValues(string(activity)).Add(float64(amount))
	if res.LeveledUp {
		observability.LevelUps.Inc()
		lg.Info().
			Str("tenant_id", tenantID).
			Str("member_id", memberID).
			Uint32("old_level", res.OldLevel).
			Uint32("new_level", res.NewLevel).
			Msg("member levelled up")
	}
	span.SetAttributes(attribute.Int64("xp.awarded", int64(amount)), attribute.Bool("xp.leveled_up", res.LeveledUp))
	return res, nil
}

// logActivity appends the audit row in the background. Its failure never
// fails the award.
func (s *XPEngine) logActivity(ctx context.Context, tenantID, memberID string, activity domain.ActivityType, amount uint64, at time.Time) {
	row := &domain.ActivityLog{
		TenantID:     tenantID,
		MemberID:     memberID,
		ActivityType: activity,
		XPAwarded:    amount,
		CreatedAt:    at,
	}
	if s.IDs != nil {
		row.ID = s.IDs.Generate().Int64()
	}
	if s.Tasks == nil {
		if err := s.Store.InsertActivityLog(ctx, s.DB, row); err != nil {
			observability.Logger(ctx).Warn().Err(err).Msg("activity log insert failed")
		}
		return
	}
	s.Tasks.Go(ctx, "activity_log", func(ctx context.Context) error {
		if err := s.Store.InsertActivityLog(ctx, s.DB, row); err != nil {
			return err
		}
		// Weekly and monthly rankings read the log, so a snapshot cached
		// between the award and this insert is stale.
		s.invalidateLeaderboard(ctx, tenantID)
		return nil
	})
}

// invalidateLeaderboard drops the tenant's cached rankings. Failures are
// logged and left to the cache TTL.
func (s *XPEngine) invalidateLeaderboard(ctx context.Context, tenantID string) {
	if s.Leaderboards == nil {
		return
	}
	if err := s.Leaderboards.Invalidate(ctx, tenantID); err != nil {
		observability.CacheDegraded.WithLabelValues("leaderboard_invalidate", "ignored").Inc()
		observability.Logger(ctx).Warn().Err(err).Str("tenant_id", tenantID).Msg("could not invalidate leaderboard")
	}
}

// resolveAmount applies the tenant overrides field by field.
func (s *XPEngine) resolveAmount(ctx context.Context, tenantID string, activity domain.ActivityType) (uint64, error) {
	cfg, err := s.Store.GetTenantXpConfig(ctx, s.DB, tenantID)
	if err != nil {
		return 0, storeErr("load tenant xp config", err)
	}
	if cfg == nil {
		cfg = &domain.TenantXpConfig{}
	}
	d := s.Defaults

	switch activity {
	case domain.ActivityMessage:
		return uint64(pick(cfg.XpPerMessage, d.Message)), nil
	case domain.ActivityReaction:
		return uint64(pick(cfg.XpPerReaction, d.Reaction)), nil
	case domain.ActivityPost:
		lo := pick(cfg.MinXpPerPost, d.PostMin)
		hi := pick(cfg.MaxXpPerPost, d.PostMax)
		if hi < lo {
			hi = lo
		}
		return uint64(lo + s.randN(hi-lo+1)), nil
	}
	return 0, errors.New("unreachable activity type " + string(activity))
}

func pick(v *int, def int) int {
	if v != nil && *v >= 0 {
		return *v
	}
	return def
}
