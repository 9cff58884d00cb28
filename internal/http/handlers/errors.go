// Package handlers defines HTTP-layer error codes used across all endpoints.
//
// Codes are stable, lowercase snake_case strings returned in the `code` field
// of ErrorResponse. Clients branch on the code; the message is for humans.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "group not found"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "unavailable"

	// Domain-specific:
	ErrCodeInvalidUpdate = "invalid_update"
	ErrCodeListFailed    = "list_failed"
	ErrCodeUpdateFailed  = "update_failed"
	ErrCodeOAuthFailed   = "oauth_failed"
	ErrCodeBadPayload    = "bad_payload"
)
