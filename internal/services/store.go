package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/repo"
)

// XPStore is the persistence contract of XPEngine.
type XPStore interface {
	// ApplyAward adds amount XP atomically and recomputes the level.
	ApplyAward(ctx context.Context, db *gorm.DB, tenantID, memberID string, activity domain.ActivityType, amount uint64, now time.Time) (*repo.Award, error)

	// GetTenantXpConfig returns the tenant's overrides, or nil when unset.
	GetTenantXpConfig(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantXpConfig, error)

	// InsertActivityLog appends one audit row.
	InsertActivityLog(ctx context.Context, db *gorm.DB, row *domain.ActivityLog) error
}

// RewardStore is the persistence contract of RewardDispatcher.
type RewardStore interface {
	RewardExists(ctx context.Context, db *gorm.DB, memberID, tenantID string, level uint32) (bool, error)
	CreateReward(ctx context.Context, db *gorm.DB, rec *domain.RewardRecord) error
	ListTenantRewards(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.TenantReward, error)
}

// MembershipStore is the persistence contract of Membership.
type MembershipStore interface {
	SetMembership(ctx context.Context, db *gorm.DB, tenantID, memberID, membershipID, tier string, active bool, now time.Time) error
	RecordPayment(ctx context.Context, db *gorm.DB, tenantID, memberID, status, tier string, now time.Time) error
}

// LeaderboardStore is the persistence contract of Leaderboard.
type LeaderboardStore interface {
	TopMembersAllTime(ctx context.Context, db *gorm.DB, tenantID string, limit int) ([]repo.LeaderboardRow, error)
	TopMembersSince(ctx context.Context, db *gorm.DB, tenantID string, since time.Time, limit int) ([]repo.LeaderboardRow, error)
}

// RepoStore adapts the repo package's free functions to every store
// interface above.
type RepoStore struct{}

var (
	_ XPStore          = RepoStore{}
	_ RewardStore      = RepoStore{}
	_ MembershipStore  = RepoStore{}
	_ LeaderboardStore = RepoStore{}
)

func (RepoStore) ApplyAward(ctx context.Context, db *gorm.DB, tenantID, memberID string, activity domain.ActivityType, amount uint64, now time.Time) (*repo.Award, error) {
	return repo.ApplyAward(ctx, db, tenantID, memberID, activity, amount, now)
}

func (RepoStore) GetTenantXpConfig(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantXpConfig, error) {
	return repo.GetTenantXpConfig(ctx, db, tenantID)
}

func (RepoStore) InsertActivityLog(ctx context.Context, db *gorm.DB, row *domain.ActivityLog) error {
	return repo.InsertActivityLog(ctx, db, row)
}

func (RepoStore) RewardExists(ctx context.Context, db *gorm.DB, memberID, tenantID string, level uint32) (bool, error) {
	return repo.RewardExists(ctx, db, memberID, tenantID, level)
}

func (RepoStore) CreateReward(ctx context.Context, db *gorm.DB, rec *domain.RewardRecord) error {
	return repo.CreateReward(ctx, db, rec)
}

func (RepoStore) ListTenantRewards(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.TenantReward, error) {
	return repo.ListTenantRewards(ctx, db, tenantID)
}

func (RepoStore) SetMembership(ctx context.Context, db *gorm.DB, tenantID, memberID, membershipID, tier string, active bool, now time.Time) error {
	return repo.SetMembership(ctx, db, tenantID, memberID, membershipID, tier, active, now)
}

func (RepoStore) RecordPayment(ctx context.Context, db *gorm.DB, tenantID, memberID, status, tier string, now time.Time) error {
	return repo.RecordPayment(ctx, db, tenantID, memberID, status, tier, now)
}

func (RepoStore) TopMembersAllTime(ctx context.Context, db *gorm.DB, tenantID string, limit int) ([]repo.LeaderboardRow, error) {
	return repo.TopMembersAllTime(ctx, db, tenantID, limit)
}

func (RepoStore) TopMembersSince(ctx context.Context, db *gorm.DB, tenantID string, since time.Time, limit int) ([]repo.LeaderboardRow, error) {
	return repo.TopMembersSince(ctx, db, tenantID, since, limit)
}

// QueryStore backs the read and admin endpoints.
type QueryStore interface {
	GetMember(ctx context.Context, db *gorm.DB, tenantID, memberID string) (*domain.Member, error)
	ListMemberRewards(ctx context.Context, db *gorm.DB, tenantID, memberID string) ([]domain.RewardRecord, error)
	RewardsStats(ctx context.Context, db *gorm.DB, tenantID, memberID string) (int64, *time.Time, error)
	CountUndeliveredRewards(ctx context.Context, db *gorm.DB, tenantID string) (int64, error)
	ListUndeliveredRewardsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.RewardRecord, error)
	GetTenantXpConfig(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantXpConfig, error)
	SaveTenantXpConfig(ctx context.Context, db *gorm.DB, cfg *domain.TenantXpConfig) error
	ListTenantRewards(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.TenantReward, error)
	ReplaceTenantRewards(ctx context.Context, db *gorm.DB, tenantID string, rows []domain.TenantReward) error
}

var _ QueryStore = RepoStore{}

func (RepoStore) GetMember(ctx context.Context, db *gorm.DB, tenantID, memberID string) (*domain.Member, error) {
	return repo.GetMember(ctx, db, tenantID, memberID)
}

func (RepoStore) ListMemberRewards(ctx context.Context, db *gorm.DB, tenantID, memberID string) ([]domain.RewardRecord, error) {
	return repo.ListMemberRewards(ctx, db, tenantID, memberID)
}

func (RepoStore) RewardsStats(ctx context.Context, db *gorm.DB, tenantID, memberID string) (int64, *time.Time, error) {
	return repo.RewardsStats(ctx, db, tenantID, memberID)
}

func (RepoStore) CountUndeliveredRewards(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	return repo.CountUndeliveredRewards(ctx, db, tenantID)
}

func (RepoStore) ListUndeliveredRewardsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.RewardRecord, error) {
	return repo.ListUndeliveredRewardsPage(ctx, db, tenantID, offset, limit)
}

func (RepoStore) SaveTenantXpConfig(ctx context.Context, db *gorm.DB, cfg *domain.TenantXpConfig) error {
	return repo.SaveTenantXpConfig(ctx, db, cfg)
}

func (RepoStore) ReplaceTenantRewards(ctx context.Context, db *gorm.DB, tenantID string, rows []domain.TenantReward) error {
	return repo.ReplaceTenantRewards(ctx, db, tenantID, rows)
}
