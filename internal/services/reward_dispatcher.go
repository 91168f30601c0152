// Package services – RewardDispatcher
//
// RewardDispatcher grants the one-time milestone reward configured for a
// level. At-most-once issuance rests on the unique (member, tenant, level)
// index of reward_records; a short Redis claim lease only keeps concurrent
// duplicates from reaching the partner API at the same time.
//
// A record is written exactly once per milestone, after the partner call has
// resolved. Failed deliveries are stored with status "failed" and listed for
// operators instead of being retried automatically.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/observability"
	"github.com/tbourn/go-xp-engine/internal/repo"
	"github.com/tbourn/go-xp-engine/internal/upstream"
)

// Partner is the subset of the partner API used for rewards.
type Partner interface {
	FindActiveMembership(ctx context.Context, tenantID, memberID string) (*upstream.Membership, error)
	ExtendMembership(ctx context.Context, membershipID string, days int, idemKey string) (string, error)
	CreateDiscountCode(ctx context.Context, tenantID, memberID string, percent int, idemKey string) (string, error)
	SendPushNotification(ctx context.Context, tenantID, memberID, title, content, idemKey string) error
}

// ClaimLeases serializes reward attempts for one milestone across workers.
type ClaimLeases interface {
	Acquire(ctx context.Context, tenantID, memberID string, level uint32) (bool, error)
	Release(ctx context.Context, tenantID, memberID string, level uint32) error
}

// Reward is one row of a milestone table.
type Reward struct {
	Level uint32            `json:"level"`
	Type  domain.RewardType `json:"reward_type"`
	Value int               `json:"reward_value"`
}

// DefaultRewards is used by tenants without their own table.
func DefaultRewards() []Reward {
	return []Reward{
		{Level: 5, Type: domain.RewardFreeDays, Value: 3},
		{Level: 10, Type: domain.RewardDiscountPercent, Value: 10},
		{Level: 25, Type: domain.RewardFreeDays, Value: 7},
		{Level: 50, Type: domain.RewardDiscountPercent, Value: 25},
		{Level: 100, Type: domain.RewardFreeDays, Value: 30},
	}
}

// RewardOutcome reports what OnLevelUp did. RewardGiven is true only when the
// partner confirmed the reward.
type RewardOutcome struct {
	RewardGiven bool                `json:"reward_given"`
	RewardType  domain.RewardType   `json:"reward_type,omitempty"`
	RewardValue int                 `json:"reward_value,omitempty"`
	Status      domain.RewardStatus `json:"status,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}

// Reasons attached to outcomes that did not grant anything.
const (
	ReasonNoReward       = "no reward configured for level"
	ReasonAlreadyIssued  = "reward already issued for level"
	ReasonClaimHeld      = "reward attempt in progress elsewhere"
	ReasonNoSubscription = "member has no active subscription"
)

var rewardKeySpace = uuid.MustParse("6f1c1e2a-8d0b-4c1e-9a55-3b7f0e3c2d10")

// RewardDispatcher issues milestone rewards.
type RewardDispatcher struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the persistence contract, usually RepoStore.
	Store RewardStore

	Partner Partner
	// Claims is optional.
	Claims ClaimLeases
	// Tasks runs push notifications; nil sends them inline.
	Tasks *Detached

	Locale language.Tag

	// RecordTimeout bounds the reward record write, which runs even after
	// ctx is done. Upstream calls stop early enough to leave it this much
	// of the caller's deadline.
	RecordTimeout time.Duration

	now func() time.Time
}

// DefaultRecordTimeout is the RecordTimeout used by NewRewardDispatcher.
const DefaultRecordTimeout = 5 * time.Second

// NewRewardDispatcher wires a dispatcher with English notification copy.
func NewRewardDispatcher(db *gorm.DB, st RewardStore, p Partner, claims ClaimLeases, tasks *Detached) *RewardDispatcher {
	return &RewardDispatcher{
		DB:      db,
		Store:   st,
		Partner: p,
		Claims:  claims,
		Tasks:   tasks,
		Locale:  language.English,

		RecordTimeout: DefaultRecordTimeout,
		now:           time.Now,
	}
}

// RewardTable returns the tenant's milestone table ordered by level. Tenant
// rows, when present, replace the defaults entirely.
func (s *RewardDispatcher) RewardTable(ctx context.Context, tenantID string) ([]Reward, error) {
	rows, err := s.Store.ListTenantRewards(ctx, s.DB, tenantID)
	if err != nil {
		return nil, storeErr("list tenant rewards", err)
	}
	if len(rows) == 0 {
		return DefaultRewards(), nil
	}
	out := make([]Reward, 0, len(rows))
	for _, r := range rows {
		out = append(out, Reward{Level: r.Level, Type: r.RewardType, Value: r.RewardValue})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// MilestonesBetween returns the configured milestones in (from, to].
func (s *RewardDispatcher) MilestonesBetween(ctx context.Context, tenantID string, from, to uint32) ([]uint32, error) {
	table, err := s.RewardTable(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for _, r := range table {
		if r.Level > from && r.Level <= to {
			out = append(out, r.Level)
		}
	}
	return out, nil
}

// OnLevelUp grants the reward configured for newLevel, if any.
func (s *RewardDispatcher) OnLevelUp(ctx context.Context, tenantID, memberID string, newLevel uint32) (*RewardOutcome, error) {
	ctx, span := observability.Tracer("services/rewards").Start(ctx, "RewardDispatcher.OnLevelUp")
	defer span.End()
	span.SetAttributes(observability.MemberAttrs(tenantID, memberID)...)
	span.SetAttributes(attribute.Int("reward.level", int(newLevel)))

	table, err := s.RewardTable(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var tier *Reward
	for i := range table {
		if table[i].Level == newLevel {
			tier = &table[i]
			break
		}
	}
	if tier == nil {
		return s.done(&RewardOutcome{Reason: ReasonNoReward}, "not_configured"), nil
	}

	if s.Claims != nil {
		ok, err := s.Claims.Acquire(ctx, tenantID, memberID, newLevel)
		switch {
		case err != nil:
			observability.CacheDegraded.WithLabelValues("reward_claim", "open").Inc()
		case !ok:
			return s.done(&RewardOutcome{Reason: ReasonClaimHeld}, "claim_held"), nil
		default:
			defer func() {
				_ = s.Claims.Release(context.WithoutCancel(ctx), tenantID, memberID, newLevel)
			}()
		}
	}

	// Read under the lease: the previous holder may already have written it.
	exists, err := s.Store.RewardExists(ctx, s.DB, memberID, tenantID, newLevel)
	if err != nil {
		return nil, storeErr("check reward record", err)
	}
	if exists {
		return s.done(&RewardOutcome{Reason: ReasonAlreadyIssued}, "duplicate"), nil
	}

	lg := observability.Logger(ctx).With().
		Str("tenant_id", tenantID).
		Str("member_id", memberID).
		Uint32("level", newLevel).
		Logger()

	rec := &domain.RewardRecord{
		MemberID:      memberID,
		TenantID:      tenantID,
		LevelAchieved: newLevel,
		RewardType:    tier.Type,
		RewardValue:   tier.Value,
	}
	idemKey := uuid.NewSHA1(rewardKeySpace, []byte(fmt.Sprintf("%s/%s/%d", tenantID, memberID, newLevel))).String()

	upCtx, cancel := s.upstreamContext(ctx)
	defer cancel()

	ms, err := s.Partner.FindActiveMembership(upCtx, tenantID, memberID)
	if err != nil {
		// Nothing was applied, so the milestone stays open.
		s.done(&RewardOutcome{}, "lookup_failed")
		return nil, fmt.Errorf("resolve membership: %w", err)
	}
	if ms == nil {
		rec.Status = domain.RewardSkipped
		rec.Reason = ReasonNoSubscription
	} else {
		ref, err := s.apply(upCtx, ms, tenantID, memberID, tier, idemKey)
		if err != nil {
			rec.Status = domain.RewardFailed
			rec.Reason = err.Error()
		} else {
			rec.Status = domain.RewardDelivered
			rec.UpstreamRef = ref
		}
	}
	rec.CreatedAt = s.now().UTC()

	// The attempt has resolved; the record must land even when ctx is done.
	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout())
	defer wcancel()
	if err := s.Store.CreateReward(wctx, s.DB, rec); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return s.done(&RewardOutcome{Reason: ReasonAlreadyIssued}, "duplicate"), nil
		}
		observability.Escalate(ctx, "reward_record", err, map[string]string{
			"tenant_id": tenantID, "member_id": memberID,
			"status": string(rec.Status), "upstream_ref": rec.UpstreamRef,
		})
		return nil, storeErr("create reward record", err)
	}

	out := &RewardOutcome{
		RewardGiven: rec.Status == domain.RewardDelivered,
		RewardType:  rec.RewardType,
		RewardValue: rec.RewardValue,
		Status:      rec.Status,
		Reason:      rec.Reason,
	}
	switch rec.Status {
	case domain.RewardDelivered:
		lg.Info().Str("reward_type", string(rec.RewardType)).Int("reward_value", rec.RewardValue).Msg("milestone reward delivered")
		s.notify(ctx, tenantID, memberID, tier, idemKey)
	case domain.RewardFailed:
		lg.Error().Str("reason", rec.Reason).Msg("milestone reward delivery failed")
	default:
		lg.Info().Str("reason", rec.Reason).Msg("milestone reward skipped")
	}
	return s.done(out, string(rec.Status)), nil
}

func (s *RewardDispatcher) recordTimeout() time.Duration {
	if s.RecordTimeout > 0 {
		return s.RecordTimeout
	}
	return DefaultRecordTimeout
}

// upstreamContext derives the context for partner calls. When ctx has a
// deadline the calls end recordTimeout before it, or halfway to it when the
// deadline is closer than twice that.
func (s *RewardDispatcher) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	dl, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	reserve := s.recordTimeout()
	if left := time.Until(dl); left < 2*reserve {
		reserve = left / 2
	}
	return context.WithDeadline(ctx, dl.Add(-reserve))
}

func (s *RewardDispatcher) done(o *RewardOutcome, label string) *RewardOutcome {
	observability.RewardOutcomes.WithLabelValues(label).Inc()
	return o
}

func (s *RewardDispatcher) apply(ctx context.Context, ms *upstream.Membership, tenantID, memberID string, tier *Reward, idemKey string) (string, error) {
	switch tier.Type {
	case domain.RewardFreeDays:
		return s.Partner.ExtendMembership(ctx, ms.ID, tier.Value, idemKey)
	case domain.RewardDiscountPercent:
		return s.Partner.CreateDiscountCode(ctx, tenantID, memberID, tier.Value, idemKey)
	}
	return "", fmt.Errorf("%w: unsupported reward type %q", upstream.ErrPermanent, tier.Type)
}

// notify sends the congratulation push. Failures are logged by the task
// runner and never touch the stored record.
func (s *RewardDispatcher) notify(ctx context.Context, tenantID, memberID string, tier *Reward, idemKey string) {
	title, content := rewardCopy(s.Locale, tier)
	send := func(ctx context.Context) error {
		return s.Partner.SendPushNotification(ctx, tenantID, memberID, title, content, idemKey+"-push")
	}
	if s.Tasks == nil {
		if err := send(ctx); err != nil {
			observability.Logger(ctx).Warn().Err(err).Msg("push notification failed")
		}
		return
	}
	s.Tasks.Go(ctx, "push_notification", send)
}

func rewardCopy(tag language.Tag, tier *Reward) (title, content string) {
	p := message.NewPrinter(tag)
	title = p.Sprintf("You reached level %d!", tier.Level)
	switch tier.Type {
	case domain.RewardFreeDays:
		content = p.Sprintf("Enjoy %d free days on your membership.", tier.Value)
	case domain.RewardDiscountPercent:
		content = p.Sprintf("Here is a %d%% discount code for your next purchase.", tier.Value)
	default:
		content = p.Sprintf("A reward is waiting for you.")
	}
	return title, content
}
