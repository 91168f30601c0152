// Tenant administration HTTP handlers.
//
//   - GET /tenants/{tenantId}/xp-config           (scoring overrides)
//   - PUT /tenants/{tenantId}/xp-config
//   - GET /tenants/{tenantId}/rewards             (effective milestone table)
//   - PUT /tenants/{tenantId}/rewards
//   - GET /tenants/{tenantId}/rewards/undelivered (failed rewards, paginated)
//
// Settings are read on demand by the XP engine and reward dispatcher, so a
// successful PUT takes effect on the next award.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/services"
)

// XpConfigRequest replaces the tenant's scoring overrides. Omitted or null
// fields fall back to the global defaults.
type XpConfigRequest struct {
	XpPerMessage  *int `json:"xp_per_message"  example:"20"`
	MinXpPerPost  *int `json:"min_xp_per_post" example:"15"`
	MaxXpPerPost  *int `json:"max_xp_per_post" example:"25"`
	XpPerReaction *int `json:"xp_per_reaction" example:"5"`
}

// RewardTableRequest replaces the tenant's milestone table. An empty list
// restores the default table.
type RewardTableRequest struct {
	Rewards []services.Reward `json:"rewards"`
}

// RewardTableResponse is the effective milestone table.
type RewardTableResponse struct {
	TenantID string            `json:"tenant_id" example:"biz_123"`
	Rewards  []services.Reward `json:"rewards"`
}

// UndeliveredRewardsResponse wraps a page of failed rewards.
type UndeliveredRewardsResponse struct {
	Rewards    []domain.RewardRecord `json:"rewards"`
	Pagination Pagination            `json:"pagination"`
}

// GetXpConfig godoc
// @ID          getXpConfig
// @Summary     Tenant XP overrides
// @Tags        Tenants
// @Produce     json
// @Param       tenantId  path  string  true  "Tenant ID"
// @Success     200  {object}  domain.TenantXpConfig
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/xp-config [get]
func (h *Handlers) GetXpConfig(c *gin.Context) {
	cfg, err := h.queries.XpConfig(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cfg)
}

// PutXpConfig godoc
// @ID          putXpConfig
// @Summary     Replace tenant XP overrides
// @Description Every set value must be within [0,1000] and min_xp_per_post must not exceed max_xp_per_post.
// @Tags        Tenants
// @Accept      json
// @Produce     json
// @Param       tenantId  path  string                    true  "Tenant ID"
// @Param       body      body  handlers.XpConfigRequest  true  "Overrides"
// @Success     200  {object}  domain.TenantXpConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/xp-config [put]
func (h *Handlers) PutXpConfig(c *gin.Context) {
	var req XpConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()
	tenantID := c.Param("tenantId")

	err := h.queries.SaveXpConfig(ctx, &domain.TenantXpConfig{
		TenantID:      tenantID,
		XpPerMessage:  req.XpPerMessage,
		MinXpPerPost:  req.MinXpPerPost,
		MaxXpPerPost:  req.MaxXpPerPost,
		XpPerReaction: req.XpPerReaction,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.GetXpConfig(c)
}

// GetRewardTable godoc
// @ID          getRewardTable
// @Summary     Effective milestone table
// @Description The tenant's own table when configured, otherwise the defaults.
// @Tags        Tenants
// @Produce     json
// @Param       tenantId  path  string  true  "Tenant ID"
// @Success     200  {object}  handlers.RewardTableResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/rewards [get]
func (h *Handlers) GetRewardTable(c *gin.Context) {
	tenantID := c.Param("tenantId")
	table, err := h.queries.RewardTable(c.Request.Context(), tenantID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RewardTableResponse{TenantID: tenantID, Rewards: table})
}

// PutRewardTable godoc
// @ID          putRewardTable
// @Summary     Replace the tenant milestone table
// @Tags        Tenants
// @Accept      json
// @Produce     json
// @Param       tenantId  path  string                       true  "Tenant ID"
// @Param       body      body  handlers.RewardTableRequest  true  "Milestones"
// @Success     200  {object}  handlers.RewardTableResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/rewards [put]
func (h *Handlers) PutRewardTable(c *gin.Context) {
	var req RewardTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.queries.ReplaceRewardTable(c.Request.Context(), c.Param("tenantId"), req.Rewards); err != nil {
		failErr(c, err)
		return
	}
	h.GetRewardTable(c)
}

// ListUndeliveredRewards godoc
// @ID          listUndeliveredRewards
// @Summary     Rewards that failed upstream
// @Description Reward records with status failed, oldest first, for operator follow-up.
// @Tags        Tenants
// @Produce     json
// @Param       tenantId   path   string  true   "Tenant ID"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.UndeliveredRewardsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/rewards/undelivered [get]
func (h *Handlers) ListUndeliveredRewards(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.queries.UndeliveredRewards(c.Request.Context(), c.Param("tenantId"), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UndeliveredRewardsResponse{
		Rewards:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}

var _ QueryService = (*services.Queries)(nil)
