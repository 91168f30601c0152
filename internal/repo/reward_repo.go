// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for RewardRecord, the
// write-once audit trail of milestone rewards.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// ErrDuplicate indicates that a reward record already exists for the given
// (member_id, tenant_id, level_achieved) tuple.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}

// RewardExists reports whether a record for the milestone is already stored.
func RewardExists(ctx context.Context, db *gorm.DB, memberID, tenantID string, level uint32) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.RewardRecord{}).
		Where("member_id = ? AND tenant_id = ? AND level_achieved = ?", memberID, tenantID, level).
		Count(&n).Error
	return n > 0, err
}

// CreateReward inserts a record and returns ErrDuplicate on unique violation.
// ID and CreatedAt are filled when empty.
func CreateReward(ctx context.Context, db *gorm.DB, rec *domain.RewardRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListMemberRewards returns every reward record of a member, newest first.
func ListMemberRewards(ctx context.Context, db *gorm.DB, tenantID, memberID string) ([]domain.RewardRecord, error) {
	var out []domain.RewardRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND member_id = ?", tenantID, memberID).
		Order("level_achieved desc").
		Find(&out).Error
	return out, err
}

// CountUndeliveredRewards returns the number of failed rewards in a tenant.
func CountUndeliveredRewards(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.RewardRecord{}).
		Where("tenant_id = ? AND status = ?", tenantID, domain.RewardFailed).
		Count(&total).Error
	return total, err
}

// ListUndeliveredRewardsPage returns a page of failed rewards for operator
// follow-up, oldest first.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListUndeliveredRewardsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.RewardRecord, error) {
	var out []domain.RewardRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, domain.RewardFailed).
		Order("created_at asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
