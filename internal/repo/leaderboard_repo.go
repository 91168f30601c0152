package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// LeaderboardRow is one ranked member before rank numbers are assigned.
type LeaderboardRow struct {
	MemberID string `json:"member_id"`
	XP       uint64 `json:"xp"`
	Level    uint32 `json:"level"`
}

// TopMembersAllTime orders a tenant's members by cumulative XP. Ties break on
// member_id so ranks are stable between recomputes.
func TopMembersAllTime(ctx context.Context, db *gorm.DB, tenantID string, limit int) ([]LeaderboardRow, error) {
	var out []LeaderboardRow
	err := db.WithContext(ctx).
		Model(&domain.Member{}).
		Select("member_id, xp, level").
		Where("tenant_id = ? AND xp > 0", tenantID).
		Order("xp desc, member_id asc").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// TopMembersSince orders members by XP earned at or after since, using the
// activity log. Level is the member's current level.
func TopMembersSince(ctx context.Context, db *gorm.DB, tenantID string, since time.Time, limit int) ([]LeaderboardRow, error) {
	var out []LeaderboardRow
	err := db.WithContext(ctx).
		Table("activity_logs AS a").
		Select("a.member_id AS member_id, SUM(a.xp_awarded) AS xp, m.level AS level").
		Joins("JOIN members m ON m.tenant_id = a.tenant_id AND m.member_id = a.member_id").
		Where("a.tenant_id = ? AND a.created_at >= ?", tenantID, since.UTC()).
		Group("a.member_id, m.level").
		Order("xp desc, a.member_id asc").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
