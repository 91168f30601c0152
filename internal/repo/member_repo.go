// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Member
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - When a member is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated; the service layer wraps
//     it as a data store fault.
//
// Functions:
//
//   - ApplyAward(ctx, db, tenantID, memberID, activity, amount, now) -> *Award, error
//     Adds XP with a single store-side increment and rewrites the level in
//     the same transaction.
//
//   - GetMember(ctx, db, tenantID, memberID) -> *domain.Member, error
//
//   - SetMembership(ctx, db, tenantID, memberID, membershipID, tier, active, now) -> error
//     Upserts the member and records membership state.
//
//   - RecordPayment(ctx, db, tenantID, memberID, status, tier, now) -> error
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/leveling"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// Award is the outcome of ApplyAward.
type Award struct {
	Member   domain.Member
	OldLevel uint32
	NewLevel uint32
}

var memberKey = []clause.Column{{Name: "tenant_id"}, {Name: "member_id"}}

func counterColumn(a domain.ActivityType) (string, error) {
	switch a {
	case domain.ActivityMessage:
		return "message_count", nil
	case domain.ActivityPost:
		return "post_count", nil
	case domain.ActivityReaction:
		return "reaction_count", nil
	}
	return "", fmt.Errorf("unknown activity type %q", a)
}

// ApplyAward adds amount XP to the member, creating the row when it does not
// exist yet. The increment is a single INSERT ... ON CONFLICT DO UPDATE with
// xp = xp + amount evaluated by the store, so concurrent awards for the same
// member never lose updates. The level column is recomputed from the new
// total before the transaction commits.
//
// The conflict update takes a row lock that is held until commit, which makes
// the follow-up read see exactly this award's contribution; OldLevel is
// therefore derived from (new total - amount).
func ApplyAward(ctx context.Context, db *gorm.DB, tenantID, memberID string, activity domain.ActivityType, amount uint64, now time.Time) (*Award, error) {
	counter, err := counterColumn(activity)
	if err != nil {
		return nil, err
	}
	now = now.UTC()

	var out Award
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := map[string]any{
			"tenant_id":        tenantID,
			"member_id":        memberID,
			"xp":               amount,
			"level":            leveling.CalculateLevel(amount),
			"message_count":    0,
			"post_count":       0,
			"reaction_count":   0,
			"last_activity_at": now,
			"created_at":       now,
			"updated_at":       now,
		}
		row[counter] = 1

		res := tx.Model(&domain.Member{}).
			Clauses(clause.OnConflict{
				Columns: memberKey,
				DoUpdates: clause.Assignments(map[string]any{
					"xp":               gorm.Expr("members.xp + ?", amount),
					counter:            gorm.Expr("members." + counter + " + 1"),
					"last_activity_at": now,
					"updated_at":       now,
				}),
			}).
			Create(row)
		if res.Error != nil {
			return res.Error
		}

		var m domain.Member
		if err := tx.Where("tenant_id = ? AND member_id = ?", tenantID, memberID).First(&m).Error; err != nil {
			return err
		}

		newLevel := leveling.CalculateLevel(m.XP)
		if m.Level != newLevel {
			if err := tx.Model(&domain.Member{}).
				Where("tenant_id = ? AND member_id = ?", tenantID, memberID).
				Update("level", newLevel).Error; err != nil {
				return err
			}
			m.Level = newLevel
		}

		out = Award{
			Member:   m,
			OldLevel: leveling.CalculateLevel(m.XP - amount),
			NewLevel: newLevel,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMember fetches a member by its composite key, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, tenantID, memberID string) (*domain.Member, error) {
	var m domain.Member
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND member_id = ?", tenantID, memberID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMembership upserts the member (xp 0, level 1 when new) and records the
// current membership state. Existing XP is never touched.
func SetMembership(ctx context.Context, db *gorm.DB, tenantID, memberID, membershipID, tier string, active bool, now time.Time) error {
	fields := map[string]any{
		"membership_active": active,
		"updated_at":        now.UTC(),
	}
	if membershipID != "" {
		fields["membership_id"] = membershipID
	}
	if tier != "" {
		fields["tier"] = tier
	}
	return upsertMemberFields(ctx, db, tenantID, memberID, fields, now)
}

// RecordPayment stores the latest payment outcome for the member.
func RecordPayment(ctx context.Context, db *gorm.DB, tenantID, memberID, status, tier string, now time.Time) error {
	fields := map[string]any{
		"last_payment_status": status,
		"last_payment_at":     now.UTC(),
		"updated_at":          now.UTC(),
	}
	if tier != "" {
		fields["tier"] = tier
	}
	return upsertMemberFields(ctx, db, tenantID, memberID, fields, now)
}

func upsertMemberFields(ctx context.Context, db *gorm.DB, tenantID, memberID string, fields map[string]any, now time.Time) error {
	row := map[string]any{
		"tenant_id":      tenantID,
		"member_id":      memberID,
		"xp":             0,
		"level":          1,
		"message_count":  0,
		"post_count":     0,
		"reaction_count": 0,
		"created_at":     now.UTC(),
	}
	for k, v := range fields {
		row[k] = v
	}
	return db.WithContext(ctx).
		Model(&domain.Member{}).
		Clauses(clause.OnConflict{Columns: memberKey, DoUpdates: clause.Assignments(fields)}).
		Create(row).Error
}
