// Package errors defines the structured error type of the taskflow service.
// Every error that reaches the HTTP boundary is an AppError carrying a machine-readable
// code and the HTTP status it maps to.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	ErrCodeInternal          = "internal_error"
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeRouteNotFound     = "route_not_found"
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeConflict          = "conflict"
	ErrCodeUserExists        = "user_exists"
	ErrCodeUnavailable       = "service_unavailable"
)

// ================================================================================
// AppError
// ================================================================================

// AppError represents a structured application error
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]string
	cause      error
}

// New creates an AppError.
func New(code string, httpStatus int, message string) *AppError {
	return &AppError{Code: code, HTTPStatus: httpStatus, Message: message}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches AppErrors by code so that errors.Is(err, ErrNotFound("")) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping cause.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithDetail returns a copy of e with an additional detail entry.
func (e *AppError) WithDetail(key, value string) *AppError {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error
func ErrInvalidRequest(message string) *AppError {
	return New(ErrCodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrUnauthorized creates an unauthorized error
func ErrUnauthorized(message string) *AppError {
	if message == "" {
		message = "Unauthorized"
	}
	return New(ErrCodeUnauthorized, http.StatusUnauthorized, message)
}

// ErrForbidden creates a forbidden error
func ErrForbidden(message string) *AppError {
	if message == "" {
		message = "Forbidden"
	}
	return New(ErrCodeForbidden, http.StatusForbidden, message)
}

// ErrNotFound creates a not_found error for a missing resource
func ErrNotFound(resource string) *AppError {
	if resource == "" {
		return New(ErrCodeNotFound, http.StatusNotFound, "Resource not found")
	}
	return New(ErrCodeNotFound, http.StatusNotFound, resource+" not found")
}

// ErrRouteNotFound creates the error returned when no handler matches
func ErrRouteNotFound() *AppError {
	return New(ErrCodeRouteNotFound, http.StatusNotFound, "Route not found")
}

// ErrConflict creates a conflict error
func ErrConflict(message string) *AppError {
	return New(ErrCodeConflict, http.StatusConflict, message)
}

// ErrUserExists is returned on registration with an email already in use
func ErrUserExists() *AppError {
	return New(ErrCodeUserExists, http.StatusBadRequest, "User already exists")
}

// ErrRateLimitExceeded creates a rate_limit_exceeded error
func ErrRateLimitExceeded(retryAfterSeconds int) *AppError {
	return New(ErrCodeRateLimitExceeded, http.StatusTooManyRequests, "Too many requests, please try again later").
		WithDetail("retryAfter", fmt.Sprintf("%d", retryAfterSeconds))
}

// ErrInternal creates an internal_error; message is shown to the client so keep it generic
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrCodeInternal, http.StatusInternalServerError, message)
}

// ErrUnavailable creates a service_unavailable error
func ErrUnavailable(message string) *AppError {
	return New(ErrCodeUnavailable, http.StatusServiceUnavailable, message)
}

// ================================================================================
// Helpers
// ================================================================================

// FromError converts any error into an AppError. Errors that are not AppErrors become a
// generic internal error that keeps the original as its cause but never exposes it.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal("").WithCause(err)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// Is and As re-export the standard library helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
