// Webhook HTTP handler.
//
//   - POST /webhooks/partner   (signed partner events)
//
// The handler only reads the body and maps pipeline errors to statuses; the
// gates themselves live in services.Ingress.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/webhook"
)

// Signature headers sent by the partner.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// WebhookAck acknowledges a delivery. Status is processed, duplicate,
// ignored, cooldown or recovered; all of them are final for the sender.
type WebhookAck struct {
	Status  string `json:"status"   example:"processed"`
	EventID string `json:"event_id" example:"msg_123"`
	Action  string `json:"action,omitempty" example:"message.created"`
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Receive a partner webhook
// @Description Verifies the HMAC signature, de-duplicates by event id, validates the payload and dispatches it.
// @Description Every accepted delivery is acknowledged with 200, including duplicates and internally recovered failures.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       X-Signature  header  string  true  "v1=<hex hmac-sha256 of timestamp.body>"
// @Param       X-Timestamp  header  string  true  "Unix seconds used in the signature"  example(1700000000)
// @Param       body         body    object  true  "Partner event {action, data}"
//
// @Success     200  {object}  handlers.WebhookAck
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed signature headers or payload"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or stale signature"
// @Failure     429  {object}  handlers.ErrorResponse  "Per-IP rate limit"
// @Failure     500  {object}  handlers.ErrorResponse  "Needs operator attention; the partner will redeliver"
// @Router      /webhooks/partner [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeInvalidPayload, "payload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeInvalidPayload, "cannot read body")
		return
	}

	ctx := c.Request.Context()
	if h.opts.WebhookBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.WebhookBudget)
		defer cancel()
	}

	rc, err := h.hooks.Receive(ctx, c.GetHeader(HeaderSignature), c.GetHeader(HeaderTimestamp), body)
	switch {
	case err == nil:
	case errors.Is(err, webhook.ErrMalformedHeaders):
		fail(c, http.StatusBadRequest, ErrCodeBadSignatureHeaders, err.Error())
		return
	case errors.Is(err, webhook.ErrBadSignature), errors.Is(err, webhook.ErrStaleTimestamp):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
		return
	case errors.Is(err, webhook.ErrInvalidPayload):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPayload, err.Error())
		return
	default:
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, WebhookAck{Status: rc.Status, EventID: rc.EventID, Action: string(rc.Action)})
}

var _ WebhookService = (*services.Ingress)(nil)
