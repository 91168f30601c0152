package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/utils"
)

// LeaderboardResponse wraps one ranked view.
type LeaderboardResponse struct {
	TenantID string                      `json:"tenant_id" example:"biz_123"`
	Filter   string                      `json:"filter"    example:"week"`
	Entries  []services.LeaderboardEntry `json:"entries"`
}

// GetLeaderboard godoc
// @ID          getLeaderboard
// @Summary     Tenant leaderboard
// @Description Members ranked by XP. week and month rank by XP earned inside the rolling window.
// @Tags        Leaderboard
// @Produce     json
//
// @Param       tenantId  path   string  true  "Tenant ID"
// @Param       filter    query  string  false "Window"            Enums(all-time, week, month) default(all-time)
// @Param       limit     query  int     false "Entries to return" minimum(1) maximum(1000) default(100)
//
// @Success     200  {object}  handlers.LeaderboardResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown filter or limit above 1000"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tenants/{tenantId}/leaderboard [get]
func (h *Handlers) GetLeaderboard(c *gin.Context) {
	tenantID := c.Param("tenantId")
	filter := c.DefaultQuery("filter", services.FilterAllTime)
	limit := utils.AtoiDefault(c.Query("limit"), services.LeaderboardDefaultLimit)

	entries, err := h.boards.Get(c.Request.Context(), tenantID, filter, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if entries == nil {
		entries = []services.LeaderboardEntry{}
	}
	ok(c, http.StatusOK, LeaderboardResponse{TenantID: tenantID, Filter: filter, Entries: entries})
}
