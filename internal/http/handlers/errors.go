// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, the rest name
// the business rule or gate that rejected the request.

package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeBadSignatureHeaders = "bad_signature_headers"
	ErrCodeInvalidPayload      = "invalid_payload"
	ErrCodeValidation          = "validation_failed"
	ErrCodeCooldown            = "cooldown"
	ErrCodeDataStore           = "data_store_error"
)
