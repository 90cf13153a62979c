package hrchat_errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestError_IsMapsStatus(t *testing.T) {
	err := fmt.Errorf("list threads: %w", &RequestError{Status: 404, Message: "thread not found", Code: "NOT_FOUND"})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUnauthorized))

	var reqErr *RequestError
	assert.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "NOT_FOUND", reqErr.Code)
	assert.Contains(t, err.Error(), "thread not found")
}

func TestValidationFailure_IsInvalidInput(t *testing.T) {
	err := NewValidation("name", "group name is required")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "name: group name is required", err.Error())
}

func TestOptimisticSendFailure_Unwraps(t *testing.T) {
	cause := &RequestError{Status: 503, Message: "down"}
	err := &OptimisticSendFailure{TempID: "temp-1", Draft: "hello", Err: cause}

	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Contains(t, err.Error(), "temp-1")
}

func TestTransportError_Unwraps(t *testing.T) {
	err := &TransportError{Op: "emit", Err: ErrNotConnected}
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.Equal(t, "transport emit: not connected", err.Error())
}
