// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities shared by every endpoint: the
// structured error envelope, the error-to-status mapping and thin success
// writers, so failures look the same whether they come from validation, a
// business rule or a fault.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 42
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "cooldown",
//	  "message": "member is on cooldown for another 42s"
//	}
package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-xp-engine/internal/http/middleware"
	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/webhook"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"member not found"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps an error from the service layer onto the envelope.
//
// Data store faults are reported with a generic message; their detail stays
// in the logs.
func failErr(c *gin.Context, err error) {
	var cd *services.CooldownError
	switch {
	case errors.As(err, &cd):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(cd.Remaining.Seconds()))))
		fail(c, http.StatusTooManyRequests, ErrCodeCooldown, err.Error())
	case errors.Is(err, services.ErrValidation), errors.Is(err, webhook.ErrInvalidPayload):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrMemberNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "member not found")
	case services.IsDataStoreError(err):
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeDataStore, "data store unavailable")
	case errors.Is(err, services.ErrCacheUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "cache unavailable")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
