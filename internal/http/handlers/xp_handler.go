// XP award HTTP handler.
//
//   - POST /xp/award   (internal callers, optional Idempotency-Key)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

// AwardRequest is the JSON payload for a direct XP award.
type AwardRequest struct {
	TenantID     string `json:"tenant_id"     binding:"required,max=64" example:"biz_123"`
	MemberID     string `json:"member_id"     binding:"required,max=64" example:"user_456"`
	ActivityType string `json:"activity_type" binding:"required"        example:"message" enums:"message,post,reaction"`
}

// AwardResponse reports the award. XPAwarded is the amount granted by this
// call; TotalXP is the member's balance afterwards.
type AwardResponse struct {
	Awarded   bool   `json:"awarded"    example:"true"`
	XPAwarded uint64 `json:"xp_awarded" example:"20"`
	TotalXP   uint64 `json:"total_xp"   example:"260"`
	LeveledUp bool   `json:"leveled_up" example:"true"`
	OldLevel  uint32 `json:"old_level"  example:"2"`
	NewLevel  uint32 `json:"new_level"  example:"3"`
}

// AwardXP godoc
// @ID          awardXp
// @Summary     Award XP for an activity
// @Description Grants XP for one activity, honoring the per-member cooldown. Milestone rewards are dispatched in the background.
// @Description A repeated Idempotency-Key from the same caller is answered with {"status":"duplicate"} and not applied again.
// @Tags        XP
// @Accept      json
// @Produce     json
//
// @Param       X-Api-Key        header  string  false "Caller key (rate limit bucket)"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.AwardRequest  true  "Award payload"
//
// @Success     200  {object}  handlers.AwardResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     429  {object}  handlers.ErrorResponse  "Cooldown or rate limit; see Retry-After"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /xp/award [post]
func (h *Handlers) AwardXP(c *gin.Context) {
	var req AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	activity, err := domain.ParseActivityType(strings.TrimSpace(req.ActivityType))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	res, err := h.awards.Award(c.Request.Context(), strings.TrimSpace(req.TenantID), strings.TrimSpace(req.MemberID), activity)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AwardResponse{
		Awarded:   true,
		XPAwarded: res.Awarded,
		TotalXP:   res.TotalXP,
		LeveledUp: res.LeveledUp,
		OldLevel:  res.OldLevel,
		NewLevel:  res.NewLevel,
	})
}
