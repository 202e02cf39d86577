// Package errors defines the API error taxonomy: sentinel kinds matched with
// errors.Is, and AppError, which carries the code and message a client sees.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Every AppError wraps exactly one of them.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

var kindStatus = map[error]int{
	ErrNotFound:       http.StatusNotFound,
	ErrInvalidInput:   http.StatusBadRequest,
	ErrInternal:       http.StatusInternalServerError,
	ErrServiceUnavail: http.StatusServiceUnavailable,
	ErrRateLimited:    http.StatusTooManyRequests,
}

// AppError is an error with a stable machine-readable code and a message
// safe to show to clients. Err keeps the cause for logs and errors.Is.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// New builds an AppError of the given kind. The status follows the kind and
// cause, when non-nil, is joined under it.
func New(kind error, code, message string, cause error) *AppError {
	status, ok := kindStatus[kind]
	if !ok {
		kind, status = ErrInternal, http.StatusInternalServerError
	}
	err := kind
	if cause != nil && !errors.Is(cause, kind) {
		err = fmt.Errorf("%w: %w", kind, cause)
	} else if cause != nil {
		err = cause
	}
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFound reports a missing resource, e.g. NotFound("search_mode", id).
func NotFound(resource, id string) *AppError {
	return New(ErrNotFound, "NOT_FOUND", fmt.Sprintf("%s %q not found", resource, id), nil)
}

// InvalidInput reports a request the client must change before retrying.
func InvalidInput(message string) *AppError {
	return New(ErrInvalidInput, "INVALID_INPUT", message, nil)
}

// ServiceUnavailable reports a failing dependency. code names it and message
// is shown to the client as is.
func ServiceUnavailable(code, message string, cause error) *AppError {
	return New(ErrServiceUnavail, code, message, cause)
}

// Internal hides cause behind a generic message.
func Internal(cause error) *AppError {
	return New(ErrInternal, "INTERNAL_ERROR", "an internal error occurred", cause)
}

// From converts any error into an AppError. AppErrors in the chain are
// returned as is; bare sentinel kinds get their default code; anything else
// is Internal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return New(ErrNotFound, "NOT_FOUND", "resource not found", err)
	case errors.Is(err, ErrInvalidInput):
		return New(ErrInvalidInput, "INVALID_INPUT", err.Error(), err)
	case errors.Is(err, ErrServiceUnavail):
		return New(ErrServiceUnavail, "SERVICE_UNAVAILABLE", "service temporarily unavailable", err)
	case errors.Is(err, ErrRateLimited):
		return New(ErrRateLimited, "RATE_LIMITED", "too many requests", err)
	default:
		return Internal(err)
	}
}
