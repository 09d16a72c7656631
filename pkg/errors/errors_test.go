package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Creation(t *testing.T) {
	cause := errors.New("connection refused")

	err := NewNetworkError("probe failed", cause)

	assert.Equal(t, ErrorTypeNetwork, err.Type)
	assert.Equal(t, "probe failed", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.NotNil(t, err.Context)
}

func TestDomainError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		error    *DomainError
		expected string
	}{
		{
			name:     "no cause",
			error:    NewValidationError("port must be positive", nil),
			expected: "validation: port must be positive",
		},
		{
			name:     "with cause",
			error:    NewProcessError("failed to start", errors.New("exec format error")),
			expected: "process: failed to start: exec format error",
		},
		{
			name:     "context keys sorted",
			error:    NewNotFoundError("no process", nil).WithContext("service", "API").WithContext("port", 8000),
			expected: "not_found: no process [port=8000, service=API]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.error.Error())
		})
	}
}

func TestDomainError_TypeChecking(t *testing.T) {
	timeoutErr := NewTimeoutError("service did not become ready", nil)
	wrapped := fmt.Errorf("ensure API: %w", timeoutErr)

	assert.True(t, IsTimeoutError(wrapped))
	assert.False(t, IsProcessError(wrapped))
	assert.True(t, errors.Is(wrapped, NewTimeoutError("", nil)))
	assert.False(t, IsUnsupportedError(errors.New("plain")))
}

func TestDomainError_NestedTypeChecking(t *testing.T) {
	unsupported := NewUnsupportedError("graceful termination is not supported on windows", nil)
	err := NewDiscoveryError("failed to list processes", fmt.Errorf("scan: %w", unsupported))

	assert.True(t, IsDiscoveryError(err))
	assert.True(t, IsUnsupportedError(err))
	assert.False(t, IsTimeoutError(err))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewPermissionError("cannot chmod", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorCollection(t *testing.T) {
	collection := NewErrorCollection()
	require.NoError(t, collection.ToError())

	collection.Add(nil)
	assert.False(t, collection.HasErrors())

	collection.Add(NewNotFoundError("no process on port 8008", nil))
	assert.Equal(t, "not_found: no process on port 8008", collection.Error())

	collection.Add(NewTimeoutError("termination timed out", nil))
	require.Error(t, collection.ToError())
	assert.Contains(t, collection.Error(), "2 errors occurred")
	assert.Contains(t, collection.Error(), "termination timed out")
}
