// Package apperror provides domain-specific error types for Nexus.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// NEVER return raw store, provider or infrastructure errors to the client.
// Always wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 400, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "not_found").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"error"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Error types that callers and tests branch on.
const (
	TypeNotFound                = "not_found"
	TypeBadRequest              = "bad_request"
	TypeValidation              = "validation_error"
	TypeUnauthorized            = "unauthorized"
	TypeForbidden               = "forbidden"
	TypeConflict                = "conflict"
	TypeInsufficientCredits     = "insufficient_credits"
	TypeServiceUnavailable      = "service_unavailable"
	TypeInvalidProviderResponse = "invalid_provider_response"
	TypeProvider                = "provider_error"
	TypeRangeNotSatisfiable     = "range_not_satisfiable"
	TypeRateLimited             = "rate_limited"
	TypeInternal                = "internal_error"
)

// --- Constructors for common error types ---

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Type: TypeNotFound, Message: message}
}

// NewBadRequest creates a 400 Bad Request error.
func NewBadRequest(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: TypeBadRequest, Message: message}
}

// NewValidation creates a 400 error for missing or malformed client input.
func NewValidation(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: TypeValidation, Message: message}
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(message string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Type: TypeUnauthorized, Message: message}
}

// NewForbidden creates a 403 Forbidden error.
func NewForbidden(message string) *AppError {
	return &AppError{Code: http.StatusForbidden, Type: TypeForbidden, Message: message}
}

// NewConflict creates a 409 Conflict error.
func NewConflict(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Type: TypeConflict, Message: message}
}

// NewInsufficientCredits creates a 402 Payment Required error returned when
// a metered operation is attempted with an exhausted balance.
func NewInsufficientCredits(message string) *AppError {
	return &AppError{Code: http.StatusPaymentRequired, Type: TypeInsufficientCredits, Message: message}
}

// NewServiceUnavailable creates a 500 error for a dependency that is not
// configured (e.g. no provider API key).
func NewServiceUnavailable(message string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Type: TypeServiceUnavailable, Message: message}
}

// NewInvalidProviderResponse creates a 500 error for provider output that
// could not be decoded.
func NewInvalidProviderResponse(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInvalidProviderResponse,
		Message:  "AI returned invalid JSON format.",
		Internal: err,
	}
}

// NewProviderError creates a 500 error for a failed provider call. The
// cause is kept for logging only.
func NewProviderError(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeProvider,
		Message:  "AI generation failed. Please try again.",
		Internal: err,
	}
}

// NewRangeNotSatisfiable creates a 416 error for a Range header that
// falls outside the object.
func NewRangeNotSatisfiable(message string) *AppError {
	return &AppError{Code: http.StatusRequestedRangeNotSatisfiable, Type: TypeRangeNotSatisfiable, Message: message}
}

// NewRateLimited creates a 429 error for callers over a request budget.
func NewRateLimited(message string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Type: TypeRateLimited, Message: message}
}

// errMissingContext is the shared internal error for nil precondition checks.
var errMissingContext = errors.New("missing required context")

// NewMissingContext creates a 500 error for handler nil-context guards
// (e.g. dependency not wired).
func NewMissingContext() *AppError {
	return NewInternal(errMissingContext)
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInternal,
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, typ string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == typ
}
