// Member HTTP handlers.
//
// This file exposes read endpoints for a member inside a tenant:
//   - GET /tenants/{tenantId}/members/{memberId}           (XP progress)
//   - GET /tenants/{tenantId}/members/{memberId}/rewards   (reward history, ETag support)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// MemberRewardsResponse lists a member's milestone rewards.
type MemberRewardsResponse struct {
	TenantID string                `json:"tenant_id" example:"biz_123"`
	MemberID string                `json:"member_id" example:"user_456"`
	Rewards  []domain.RewardRecord `json:"rewards"`
}

// GetMemberProgress godoc
// @ID          getMemberProgress
// @Summary     Member XP progress
// @Description Returns XP, level, XP into the current level and XP still needed for the next one.
// @Tags        Members
// @Produce     json
//
// @Param       tenantId  path  string  true  "Tenant ID"
// @Param       memberId  path  string  true  "Member ID"
//
// @Success     200  {object}  services.MemberProgress
// @Failure     404  {object}  handlers.ErrorResponse  "Member not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/members/{memberId} [get]
func (h *Handlers) GetMemberProgress(c *gin.Context) {
	p, err := h.queries.Progress(c.Request.Context(), c.Param("tenantId"), c.Param("memberId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListMemberRewards godoc
// @ID          listMemberRewards
// @Summary     Member reward history
// @Description Reward records for the member, highest level first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Members
// @Produce     json
//
// @Param       tenantId       path    string  true   "Tenant ID"
// @Param       memberId       path    string  true   "Member ID"
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
//
// @Success     200  {object}  handlers.MemberRewardsResponse
// @Success     304  "Not modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/members/{memberId}/rewards [get]
func (h *Handlers) ListMemberRewards(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID, memberID := c.Param("tenantId"), c.Param("memberId")

	// Records are write-once, so count plus newest timestamp identifies the list.
	if count, newest, err := h.queries.RewardsStats(ctx, tenantID, memberID); err == nil {
		var ts int64
		if newest != nil {
			ts = newest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"rewards:%s:%s:%d:%d"`, tenantID, memberID, count, ts)
		c.Header("ETag", etag)
		c.Header("Cache-Control", "private, no-cache")
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.queries.MemberRewards(ctx, tenantID, memberID)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.RewardRecord{}
	}
	ok(c, http.StatusOK, MemberRewardsResponse{TenantID: tenantID, MemberID: memberID, Rewards: items})
}
