package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// InsertActivityLog appends one audit row. Rows are never updated.
func InsertActivityLog(ctx context.Context, db *gorm.DB, row *domain.ActivityLog) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(row).Error
}
