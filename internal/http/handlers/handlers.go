// Package handlers exposes the HTTP endpoints of the XP engine.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/utils"
)

//
// Service contracts (context-aware)
//

// WebhookService authenticates and processes partner webhooks.
type WebhookService interface {
	// Receive runs the full ingress pipeline for one delivery.
	Receive(ctx context.Context, sigHeader, tsHeader string, body []byte) (*services.Receipt, error)
}

// AwardService grants XP for one activity and schedules milestone rewards.
type AwardService interface {
	Award(ctx context.Context, tenantID, memberID string, activity domain.ActivityType) (*services.AwardResult, error)
}

// LeaderboardService serves ranked member lists.
type LeaderboardService interface {
	Get(ctx context.Context, tenantID, filter string, limit int) ([]services.LeaderboardEntry, error)
}

// QueryService backs the read and tenant admin endpoints.
type QueryService interface {
	Progress(ctx context.Context, tenantID, memberID string) (*services.MemberProgress, error)
	MemberRewards(ctx context.Context, tenantID, memberID string) ([]domain.RewardRecord, error)
	RewardsStats(ctx context.Context, tenantID, memberID string) (int64, *time.Time, error)
	UndeliveredRewards(ctx context.Context, tenantID string, page, pageSize int) ([]domain.RewardRecord, int64, error)
	XpConfig(ctx context.Context, tenantID string) (*domain.TenantXpConfig, error)
	SaveXpConfig(ctx context.Context, cfg *domain.TenantXpConfig) error
	RewardTable(ctx context.Context, tenantID string) ([]services.Reward, error)
	ReplaceRewardTable(ctx context.Context, tenantID string, table []services.Reward) error
}

//
// Handler wiring
//

// Options tunes handler behavior.
type Options struct {
	// WebhookBudget bounds webhook processing so the partner gets an answer
	// well inside its 3s delivery timeout. Zero disables the bound.
	WebhookBudget time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	hooks   WebhookService
	awards  AwardService
	boards  LeaderboardService
	queries QueryService
	opts    Options
}

// New constructs Handlers bound to the given services.
func New(hooks WebhookService, awards AwardService, boards LeaderboardService, queries QueryService, opts Options) *Handlers {
	return &Handlers{hooks: hooks, awards: awards, boards: boards, queries: queries, opts: opts}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}
