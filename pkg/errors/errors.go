package hrchat_errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotConnected       = errors.New("not connected")
	ErrNoActiveThread     = errors.New("no active thread")
	ErrEmptyMessage       = errors.New("empty message")
)

// TransportError reports a lost or not yet established gateway connection.
// Cached client state stays valid; only live updates stop.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport " + e.Op
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RequestError is a non-2xx answer from the REST collaborator.
type RequestError struct {
	Status  int
	Message string
	Code    string
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request failed (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == 401
	case ErrForbidden:
		return e.Status == 403
	case ErrNotFound:
		return e.Status == 404
	case ErrConflict:
		return e.Status == 409
	case ErrInvalidInput:
		return e.Status == 400 || e.Status == 422
	case ErrRateLimited:
		return e.Status == 429
	case ErrServiceUnavailable:
		return e.Status == 503
	}
	return false
}

// OptimisticSendFailure is returned when a send was rejected and the
// temporary message rolled back. Draft holds the text restored to the composer.
type OptimisticSendFailure struct {
	TempID string
	Draft  string
	Err    error
}

func (e *OptimisticSendFailure) Error() string {
	return fmt.Sprintf("send %s failed: %v", e.TempID, e.Err)
}

func (e *OptimisticSendFailure) Unwrap() error { return e.Err }

// ValidationFailure is a local rejection raised before any network call.
type ValidationFailure struct {
	Field   string
	Message string
}

func (e *ValidationFailure) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationFailure) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidation builds a ValidationFailure for field.
func NewValidation(field, message string) error {
	return &ValidationFailure{Field: field, Message: message}
}
