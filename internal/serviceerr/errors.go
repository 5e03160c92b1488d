// Package serviceerr defines the error taxonomy shared by the HTTP and
// gRPC surfaces. Every error carries a stable machine-readable code; the
// HTTP status is derived from the code, never from free-form text.
package serviceerr

import (
	"fmt"
	"net/http"
)

type Code string

const (
	// RFC6749 authorization error codes.
	CodeInvalidRequest         Code = "invalid_request"
	CodeUnauthorizedClient     Code = "unauthorized_client"
	CodeAccessDenied           Code = "access_denied"
	CodeServerError            Code = "server_error"
	CodeTemporarilyUnavailable Code = "temporarily_unavailable"
	CodeInvalidGrant           Code = "invalid_grant"

	// Gateway specific codes.
	CodeUnknown          Code = "unknown"
	CodeConflict         Code = "conflict"
	CodeNotFound         Code = "not_found"
	CodeUnauthenticated  Code = "unauthenticated"
	CodeInvalidSession   Code = "invalid_session"
	CodeMalformedState   Code = "malformed_state"
	CodeMissingCode      Code = "missing_code"
	CodeExchangeFailed   Code = "exchange_failed"
	CodeStateExpired     Code = "state_expired"
	CodeInvalidCSRFToken Code = "invalid_csrf_token"
	CodeBlockedTenant    Code = "blocked_tenant"

	CodeFingerprintMismatch Code = "fingerprint_mismatch"
	CodeInvalidAtHash       Code = "invalid_at_hash"
)

// Error is the service level error. Err is the stable code, Description
// is safe to log but must not be returned verbatim to browsers for the
// authentication codes (see the handlers).
type Error struct {
	Err         Code
	Description string
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Err, e.Description)
}

// HTTPStatus maps the error code onto an HTTP status code. Unknown codes
// map to 500 so new codes fail safe.
func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeInvalidGrant, CodeMalformedState, CodeMissingCode:
		return http.StatusBadRequest
	case CodeUnauthorizedClient, CodeUnauthenticated, CodeInvalidSession, CodeFingerprintMismatch, CodeInvalidAtHash:
		return http.StatusUnauthorized
	case CodeAccessDenied, CodeBlockedTenant, CodeInvalidCSRFToken:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeStateExpired:
		return http.StatusGone
	case CodeExchangeFailed:
		return http.StatusBadGateway
	case CodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrUnknown          = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrConflict         = &Error{Err: CodeConflict, Description: "already exists"}
	ErrNotFound         = &Error{Err: CodeNotFound, Description: "not found"}
	ErrUnauthenticated  = &Error{Err: CodeUnauthenticated, Description: "no session credential present"}
	ErrInvalidSession   = &Error{Err: CodeInvalidSession, Description: "session credential failed verification"}
	ErrMalformedState   = &Error{Err: CodeMalformedState, Description: "state token cannot be decoded"}
	ErrMissingCode      = &Error{Err: CodeMissingCode, Description: "no authorization code provided"}
	ErrExchangeFailed   = &Error{Err: CodeExchangeFailed, Description: "authorization code exchange failed"}
	ErrStateExpired     = &Error{Err: CodeStateExpired, Description: "state expired"}
	ErrInvalidCSRFToken = &Error{Err: CodeInvalidCSRFToken, Description: "invalid csrf token"}
	ErrBlockedTenant    = &Error{Err: CodeBlockedTenant, Description: "tenant is blocked"}
	ErrUnauthorized     = &Error{Err: CodeUnauthorizedClient, Description: "authentication failed"}

	ErrFingerprintMismatch = &Error{Err: CodeFingerprintMismatch, Description: "client fingerprint does not match"}
	ErrInvalidAtHash       = &Error{Err: CodeInvalidAtHash, Description: "access token hash verification failed"}
)
