package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// GetTenantXpConfig returns the tenant's overrides, or (nil, nil) when the
// tenant has none.
func GetTenantXpConfig(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantXpConfig, error) {
	var cfg domain.TenantXpConfig
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTenantXpConfig replaces the tenant's overrides. Nil fields are stored as
// NULL so they fall back to the global defaults.
func SaveTenantXpConfig(ctx context.Context, db *gorm.DB, cfg *domain.TenantXpConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"xp_per_message", "min_xp_per_post", "max_xp_per_post", "xp_per_reaction", "updated_at",
			}),
		}).
		Create(cfg).Error
}

// ListTenantRewards returns the tenant's milestone overrides ordered by level.
func ListTenantRewards(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.TenantReward, error) {
	var out []domain.TenantReward
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("level asc").
		Find(&out).Error
	return out, err
}

// ReplaceTenantRewards swaps the tenant's reward table atomically. An empty
// slice removes all overrides, restoring the defaults.
func ReplaceTenantRewards(ctx context.Context, db *gorm.DB, tenantID string, rows []domain.TenantReward) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&domain.TenantReward{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].TenantID = tenantID
		}
		return tx.Create(&rows).Error
	})
}
