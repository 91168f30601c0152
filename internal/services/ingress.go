// Package services – Ingress
//
// Ingress runs the inbound webhook pipeline:
//
//	Received → SignatureVerified → Deduplicated → Validated → Dispatched → Acknowledged
//
// Each gate either advances or exits with an error the HTTP layer maps to a
// status code. Once an event is validated, failures are recovered and
// acknowledged to the partner, except DataStoreError: that one releases the
// dedup entry so the partner's redelivery can be processed, and is surfaced
// for a 500.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/observability"
	"github.com/tbourn/go-xp-engine/internal/webhook"
)

// Receipt statuses.
const (
	ReceiptProcessed = "processed"
	ReceiptDuplicate = "duplicate"
	ReceiptIgnored   = "ignored"
	ReceiptCooldown  = "cooldown"
	ReceiptRecovered = "recovered"
)

// Receipt describes how an accepted webhook was handled.
type Receipt struct {
	EventID string         `json:"event_id"`
	Action  webhook.Action `json:"action"`
	Status  string         `json:"status"`
	Award   *AwardResult   `json:"award,omitempty"`
}

// EventDeduper claims event ids with an atomic set-if-not-exists.
type EventDeduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Ingress orchestrates webhook processing.
type Ingress struct {
	Verifier *webhook.Verifier
	Dedup    EventDeduper
	Engine   *XPEngine
	Rewards  *RewardDispatcher
	Members  *Membership
	// Tasks runs reward dispatch after a level-up; nil runs it inline.
	Tasks *Detached
}

// Receive verifies, de-duplicates, validates and dispatches one webhook.
func (s *Ingress) Receive(ctx context.Context, sigHeader, tsHeader string, body []byte) (*Receipt, error) {
	ctx, span := observability.Tracer("services/ingress").Start(ctx, "Ingress.Receive")
	defer span.End()

	if err := s.Verifier.Verify(sigHeader, tsHeader, body); err != nil {
		observability.WebhookOutcomes.WithLabelValues("unknown", "rejected_signature").Inc()
		return nil, err
	}

	id, ok := webhook.EventID(body, tsHeader)
	if !ok {
		observability.WebhookOutcomes.WithLabelValues("unknown", "rejected_payload").Inc()
		return nil, fmt.Errorf("%w: cannot derive event id", webhook.ErrInvalidPayload)
	}

	claimed, err := s.Dedup.Claim(ctx, id)
	if err != nil {
		// Dropping events on a cache outage would lose XP for good; process
		// them and rely on reward uniqueness in the store.
		observability.CacheDegraded.WithLabelValues("webhook_dedup", "open").Inc()
		observability.Logger(ctx).Warn().Err(err).Str("event_id", id).Msg("dedup unavailable; processing without claim")
		claimed = true
	}
	if !claimed {
		observability.WebhookOutcomes.WithLabelValues("unknown", ReceiptDuplicate).Inc()
		return &Receipt{EventID: id, Status: ReceiptDuplicate}, nil
	}

	ev, err := webhook.Parse(body, id)
	if err != nil {
		s.release(ctx, id)
		observability.WebhookOutcomes.WithLabelValues("unknown", "rejected_payload").Inc()
		return nil, err
	}
	action := actionLabel(ev)

	rc, err := s.Dispatch(ctx, ev)
	if err != nil {
		fields := map[string]string{
			"event_id":  id,
			"action":    string(ev.Action()),
			"tenant_id": ev.Identity().TenantID,
			"member_id": ev.Identity().MemberID,
		}
		if IsDataStoreError(err) {
			s.release(ctx, id)
			observability.WebhookOutcomes.WithLabelValues(action, "failed").Inc()
			observability.Escalate(ctx, "webhook_ingress", err, fields)
			return nil, err
		}
		observability.WebhookOutcomes.WithLabelValues(action, ReceiptRecovered).Inc()
		observability.Escalate(ctx, "webhook_ingress", err, fields)
		return &Receipt{EventID: id, Action: ev.Action(), Status: ReceiptRecovered}, nil
	}
	observability.WebhookOutcomes.WithLabelValues(action, rc.Status).Inc()
	return rc, nil
}

// Dispatch routes a validated event to the XP engine or to membership
// bookkeeping.
func (s *Ingress) Dispatch(ctx context.Context, ev webhook.Event) (*Receipt, error) {
	subj := ev.Identity()
	rc := &Receipt{EventID: subj.EventID, Action: ev.Action(), Status: ReceiptProcessed}

	var err error
	switch e := ev.(type) {
	case webhook.MessageCreated:
		rc.Award, err = s.Award(ctx, e.TenantID, e.MemberID, domain.ActivityMessage)
	case webhook.PostCreated:
		rc.Award, err = s.Award(ctx, e.TenantID, e.MemberID, domain.ActivityPost)
	case webhook.ReactionCreated:
		rc.Award, err = s.Award(ctx, e.TenantID, e.MemberID, domain.ActivityReaction)
	case webhook.MembershipWentValid:
		err = s.Members.Activate(ctx, e.TenantID, e.MemberID, e.MembershipID, e.Tier)
	case webhook.MembershipWentInvalid:
		err = s.Members.Deactivate(ctx, e.TenantID, e.MemberID, e.MembershipID)
	case webhook.PaymentSucceeded:
		err = s.Members.RecordPayment(ctx, e.TenantID, e.MemberID, true, e.Tier)
	case webhook.PaymentFailed:
		err = s.Members.RecordPayment(ctx, e.TenantID, e.MemberID, false, e.Tier)
	case webhook.Unknown:
		observability.Logger(ctx).Info().Str("action", e.Name).Str("event_id", subj.EventID).Msg("ignoring unhandled webhook action")
		rc.Status = ReceiptIgnored
	default:
		observability.Logger(ctx).Warn().Str("type", fmt.Sprintf("%T", ev)).Msg("event variant has no handler")
		rc.Status = ReceiptIgnored
	}

	var cd *CooldownError
	if errors.As(err, &cd) {
		rc.Status = ReceiptCooldown
		return rc, nil
	}
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Award runs AwardXp and, on a level-up, schedules reward dispatch for every
// milestone crossed.
func (s *Ingress) Award(ctx context.Context, tenantID, memberID string, activity domain.ActivityType) (*AwardResult, error) {
	res, err := s.Engine.AwardXp(ctx, tenantID, memberID, activity)
	if err != nil {
		return nil, err
	}
	if res.LeveledUp && s.Rewards != nil {
		run := func(ctx context.Context) error {
			return s.dispatchRewards(ctx, tenantID, memberID, res.OldLevel, res.NewLevel)
		}
		if s.Tasks != nil {
			s.Tasks.Go(ctx, "reward_dispatch", run)
		} else if err := run(ctx); err != nil {
			observability.Logger(ctx).Warn().Err(err).Msg("reward dispatch failed")
		}
	}
	return res, nil
}

func (s *Ingress) dispatchRewards(ctx context.Context, tenantID, memberID string, from, to uint32) error {
	levels, err := s.Rewards.MilestonesBetween(ctx, tenantID, from, to)
	if err != nil {
		observability.Escalate(ctx, "reward_dispatch", err, map[string]string{"tenant_id": tenantID, "member_id": memberID})
		return err
	}
	var errs []error
	for _, lvl := range levels {
		if _, err := s.Rewards.OnLevelUp(ctx, tenantID, memberID, lvl); err != nil {
			observability.Escalate(ctx, "reward_dispatch", err, map[string]string{
				"tenant_id": tenantID, "member_id": memberID, "level": fmt.Sprint(lvl),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Ingress) release(ctx context.Context, id string) {
	if err := s.Dedup.Release(context.WithoutCancel(ctx), id); err != nil {
		observability.CacheDegraded.WithLabelValues("webhook_dedup_release", "ignored").Inc()
	}
}

// actionLabel bounds metric cardinality to the known actions.
func actionLabel(ev webhook.Event) string {
	if _, ok := ev.(webhook.Unknown); ok {
		return "other"
	}
	return string(ev.Action())
}
