package services

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Payment statuses recorded on the member.
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// Membership keeps the member's subscription state in sync with the partner's
// membership and payment webhooks. It never touches XP.
type Membership struct {
	DB    *gorm.DB
	Store MembershipStore

	now func() time.Time
}

// NewMembership wires the bookkeeping service.
func NewMembership(db *gorm.DB, st MembershipStore) *Membership {
	return &Membership{DB: db, Store: st, now: time.Now}
}

// Activate creates the member if needed (xp 0, level 1) and marks the
// membership active.
func (s *Membership) Activate(ctx context.Context, tenantID, memberID, membershipID, tier string) error {
	if membershipID == "" {
		return invalid("membership id is required")
	}
	return storeErr("activate membership",
		s.Store.SetMembership(ctx, s.DB, tenantID, memberID, membershipID, tier, true, s.now()))
}

// Deactivate marks the membership inactive. XP and rewards are kept.
func (s *Membership) Deactivate(ctx context.Context, tenantID, memberID, membershipID string) error {
	return storeErr("deactivate membership",
		s.Store.SetMembership(ctx, s.DB, tenantID, memberID, membershipID, "", false, s.now()))
}

// RecordPayment stores the latest payment outcome and, when known, the tier.
func (s *Membership) RecordPayment(ctx context.Context, tenantID, memberID string, succeeded bool, tier string) error {
	status := PaymentFailed
	if succeeded {
		status = PaymentSucceeded
	}
	return storeErr("record payment",
		s.Store.RecordPayment(ctx, s.DB, tenantID, memberID, status, tier, s.now()))
}
