// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Datamira.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Pipeline Kinds: Dedicated constructors for every error kind the orchestration
    core surfaces (Blocked, Unreachable, SynthesisFailed, Timeout, ...).
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves a component should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the Datamira API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., driver messages
// containing credentials).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "BLOCKED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Connection") // Returns "Connection not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Authentication Errors

// Locked creates a 401 [AppError] for accounts under a temporary lockout.
func Locked(msg string) *AppError {
	return &AppError{
		Code:       "LOCKED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Inactive creates a 401 [AppError] for disabled or suspended accounts.
func Inactive(msg string) *AppError {
	return &AppError{
		Code:       "INACTIVE",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// SessionExpired creates a 401 [AppError] for sessions past their expiry.
func SessionExpired() *AppError {
	return &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "Session has expired",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// SessionRevoked creates a 401 [AppError] for sessions that were revoked.
func SessionRevoked() *AppError {
	return &AppError{
		Code:       "SESSION_REVOKED",
		Message:    "Session has been revoked",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # Pipeline Errors

// Blocked creates a 403 [AppError] for queries denied by the safety policy.
// The offending keyword is included so the user can rephrase.
func Blocked(keyword string) *AppError {
	return &AppError{
		Code:       "BLOCKED",
		Message:    fmt.Sprintf("Query blocked by safety policy (keyword: %s)", keyword),
		HTTPStatus: http.StatusForbidden,
	}
}

// Unreachable creates a 503 [AppError] for databases that cannot be opened or tested.
func Unreachable(msg string, cause error) *AppError {
	return &AppError{
		Code:       "UNREACHABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// DriverError creates a 422 [AppError] for queries that failed after dispatch.
// The raw driver error is kept as Cause for logging; msg must be pre-scrubbed.
func DriverError(msg string, cause error) *AppError {
	return &AppError{
		Code:       "DRIVER_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// SynthesisFailed creates a 502 [AppError] when the language model could not
// produce a query or explanation.
func SynthesisFailed(reason string) *AppError {
	return &AppError{
		Code:       "SYNTHESIS_FAILED",
		Message:    "Could not generate a query: " + reason,
		HTTPStatus: http.StatusBadGateway,
	}
}

// UpstreamUnavailable creates a 503 [AppError] for embedding/LM/vector/graph
// collaborator failures.
func UpstreamUnavailable(collaborator string, cause error) *AppError {
	return &AppError{
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    collaborator + " is temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// Timeout creates a 504 [AppError] for deadlines exceeded inside the pipeline.
func Timeout(step string) *AppError {
	return &AppError{
		Code:       "TIMEOUT",
		Message:    "Request timed out during " + step,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// Is reports whether err carries the given machine-readable code.
func Is(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
