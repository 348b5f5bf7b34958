package taperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndDetails(t *testing.T) {
	err := New(ErrorTypeSourceRequest, "endpoint rejected request").
		WithDetail("path", "/v1/jobs").
		WithDetail("status", 403)

	assert.Equal(t, "source_request: endpoint rejected request", err.Error())
	assert.Equal(t, "/v1/jobs", err.Details["path"])
	assert.Equal(t, 403, err.Details["status"])
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrorTypeConnection, "request failed")

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Nil(t, Wrap(nil, ErrorTypeConnection, "ignored"))
}

func TestWrapKeepsTypeVisibleThroughChain(t *testing.T) {
	inner := New(ErrorTypeRateLimit, "throttled")
	outer := Wrap(inner, ErrorTypeSourceUnavailable, "retries exhausted")

	assert.True(t, IsType(outer, ErrorTypeSourceUnavailable))

	var structured *Error
	require.True(t, errors.As(outer, &structured))
	assert.Equal(t, ErrorTypeSourceUnavailable, structured.Type)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "refused")))
	assert.True(t, IsRetryable(New(ErrorTypeRateLimit, "throttled")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "deadline")))

	assert.False(t, IsRetryable(New(ErrorTypeSourceRequest, "bad request")))
	assert.False(t, IsRetryable(New(ErrorTypeMalformedRecord, "not an object")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestStreamFatal(t *testing.T) {
	assert.True(t, StreamFatal(New(ErrorTypeSourceUnavailable, "down")))
	assert.True(t, StreamFatal(New(ErrorTypeMalformedRecord, "bad page")))
	assert.True(t, StreamFatal(fmt.Errorf("plain error")))

	// State corruption escalates past the stream boundary
	assert.False(t, StreamFatal(New(ErrorTypeStateCorruption, "unparsable")))
}
