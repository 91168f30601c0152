// Package domain defines the persistence models for members, activity,
// milestone rewards and tenant scoring rules. These types are mapped with
// GORM and shared by the repository and service layers.
package domain

import (
	"fmt"
	"time"
)

// ActivityType is the kind of community action that earns XP.
type ActivityType string

const (
	ActivityMessage  ActivityType = "message"
	ActivityPost     ActivityType = "post"
	ActivityReaction ActivityType = "reaction"
)

// ParseActivityType validates a raw activity name.
func ParseActivityType(s string) (ActivityType, error) {
	switch ActivityType(s) {
	case ActivityMessage, ActivityPost, ActivityReaction:
		return ActivityType(s), nil
	}
	return "", fmt.Errorf("unknown activity type %q", s)
}

// Member is a tenant-scoped XP account. The primary key is the pair
// (tenant_id, member_id), which is also the upsert conflict target.
//
// Level is always CalculateLevel(XP); it is rewritten inside the same
// transaction as every XP change.
type Member struct {
	TenantID       string     `json:"tenant_id"        gorm:"type:varchar(64);primaryKey;index:idx_members_tenant_xp,priority:1"`
	MemberID       string     `json:"member_id"        gorm:"type:varchar(64);primaryKey"`
	XP             uint64     `json:"xp"               gorm:"not null;default:0;index:idx_members_tenant_xp,priority:2,sort:desc"`
	Level          uint32     `json:"level"            gorm:"not null;default:1"`
	MessageCount   uint64     `json:"message_count"    gorm:"not null;default:0"`
	PostCount      uint64     `json:"post_count"       gorm:"not null;default:0"`
	ReactionCount  uint64     `json:"reaction_count"   gorm:"not null;default:0"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	// Membership bookkeeping fed by membership.* and payment.* webhooks.
	Tier              string     `json:"tier"                gorm:"type:varchar(64);not null;default:''"`
	MembershipID      string     `json:"membership_id"       gorm:"type:varchar(128);not null;default:''"`
	MembershipActive  bool       `json:"membership_active"   gorm:"not null;default:false"`
	LastPaymentStatus string     `json:"last_payment_status" gorm:"type:varchar(16);not null;default:''"`
	LastPaymentAt     *time.Time `json:"last_payment_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Member.
func (Member) TableName() string { return "members" }

// ActivityLog is an append-only audit row for every award.
type ActivityLog struct {
	ID           int64        `json:"id"            gorm:"primaryKey;autoIncrement:false"`
	TenantID     string       `json:"tenant_id"     gorm:"type:varchar(64);not null;index:idx_activity_tenant_time,priority:1"`
	MemberID     string       `json:"member_id"     gorm:"type:varchar(64);not null;index"`
	ActivityType ActivityType `json:"activity_type" gorm:"type:varchar(16);not null"`
	XPAwarded    uint64       `json:"xp_awarded"    gorm:"not null"`
	CreatedAt    time.Time    `json:"created_at"    gorm:"not null;index:idx_activity_tenant_time,priority:2"`
}

// TableName returns the database table name for ActivityLog.
func (ActivityLog) TableName() string { return "activity_logs" }

// RewardType is the benefit granted at a milestone.
type RewardType string

const (
	RewardFreeDays        RewardType = "free_days"
	RewardDiscountPercent RewardType = "discount_percent"
)

// RewardStatus records how a dispatch attempt resolved. Records are
// write-once, so a failed delivery stays failed and is surfaced for operator
// follow-up instead of being retried automatically.
type RewardStatus string

const (
	RewardDelivered RewardStatus = "delivered"
	RewardFailed    RewardStatus = "failed"
	RewardSkipped   RewardStatus = "skipped_no_subscription"
)

// RewardRecord is the audit trail of a milestone reward. At most one row may
// exist per (member_id, tenant_id, level_achieved).
type RewardRecord struct {
	ID            string       `json:"id"             gorm:"type:char(36);primaryKey"`
	MemberID      string       `json:"member_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_reward_member_tenant_level,priority:1"`
	TenantID      string       `json:"tenant_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_reward_member_tenant_level,priority:2;index"`
	LevelAchieved uint32       `json:"level_achieved" gorm:"not null;uniqueIndex:ux_reward_member_tenant_level,priority:3"`
	RewardType    RewardType   `json:"reward_type"    gorm:"type:varchar(32);not null"`
	RewardValue   int          `json:"reward_value"   gorm:"not null"`
	Status        RewardStatus `json:"status"         gorm:"type:varchar(32);not null;index"`
	UpstreamRef   string       `json:"upstream_ref"   gorm:"type:varchar(255);not null;default:''"`
	Reason        string       `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at"     gorm:"autoCreateTime"`
}

// TableName returns the database table name for RewardRecord.
func (RewardRecord) TableName() string { return "reward_records" }

// TenantXpConfig holds per-tenant XP rate overrides. A nil field falls back
// to the global default individually.
type TenantXpConfig struct {
	TenantID      string    `json:"tenant_id"                  gorm:"type:varchar(64);primaryKey"`
	XpPerMessage  *int      `json:"xp_per_message,omitempty"`
	MinXpPerPost  *int      `json:"min_xp_per_post,omitempty"`
	MaxXpPerPost  *int      `json:"max_xp_per_post,omitempty"`
	XpPerReaction *int      `json:"xp_per_reaction,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for TenantXpConfig.
func (TenantXpConfig) TableName() string { return "tenant_xp_configs" }

// TenantReward overrides one milestone of the default reward table. When a
// tenant has any rows, they replace the defaults entirely.
type TenantReward struct {
	TenantID    string     `json:"tenant_id"    gorm:"type:varchar(64);primaryKey"`
	Level       uint32     `json:"level"        gorm:"primaryKey"`
	RewardType  RewardType `json:"reward_type"  gorm:"type:varchar(32);not null"`
	RewardValue int        `json:"reward_value" gorm:"not null"`
}

// TableName returns the database table name for TenantReward.
func (TenantReward) TableName() string { return "tenant_rewards" }

// All lists every model for migrations.
func All() []any {
	return []any{
		&Member{},
		&ActivityLog{},
		&RewardRecord{},
		&TenantXpConfig{},
		&TenantReward{},
	}
}
