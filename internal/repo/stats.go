// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// RewardsStats returns the number of reward records a member holds and the
// newest CreatedAt among them. Records are write-once, so the pair changes
// exactly when the list does.
//
// When the member has no rewards, count is 0 and newest is nil.
func RewardsStats(ctx context.Context, db *gorm.DB, tenantID, memberID string) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.RewardRecord{}).Where("tenant_id = ? AND member_id = ?", tenantID, memberID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
