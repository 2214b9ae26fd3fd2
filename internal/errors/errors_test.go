//nolint:revive // Package name matches the package it tests
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	all := []error{
		ErrNotFound, ErrIncompatibleAPIVersion, ErrDeploymentFailed,
		ErrConfigurationMissing, ErrValidation, ErrConnectivity, ErrLocked,
	}
	for i := range all {
		for j := range all {
			if i != j {
				assert.NotEqual(t, all[i], all[j])
			}
		}
	}
}

func TestDetailErrorError(t *testing.T) {
	detail := &DetailError{
		Type:     "not found",
		Message:  "product web-portal has no version 2.0.0",
		Location: "https://repo.example.com/releases",
		Context:  map[string]string{"Product": "web-portal"},
		Hint:     "Run prov refresh web-portal",
	}

	output := detail.Error()

	assert.Contains(t, output, "Error: not found")
	assert.Contains(t, output, "Location: https://repo.example.com/releases")
	assert.Contains(t, output, "Product: web-portal")
	assert.Contains(t, output, "no version 2.0.0")
	assert.Contains(t, output, "Hint: Run prov refresh web-portal")
}

func TestDetailErrorUnwrap(t *testing.T) {
	detail := &DetailError{Type: "test", Message: "test message", Cause: ErrNotFound}

	assert.True(t, errors.Is(detail, ErrNotFound))
	assert.Equal(t, ErrNotFound, detail.Unwrap())
}

func TestNewIncompatibleAPIError(t *testing.T) {
	err := NewIncompatibleAPIError("web-portal", "2.0.0", "1.4.0")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatibleAPIVersion))

	var detail *DetailError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, "1.4.0", detail.Context["Engine API"])
	assert.Contains(t, detail.Message, "2.0.0")
}

func TestNewNotFoundErrorSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("resolving: %w", NewNotFoundError("missing", "", ""))
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrIncompatibleAPIVersion))
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrConfigurationMissing, "no primary repository")

	assert.True(t, errors.Is(wrapped, ErrConfigurationMissing))
	assert.Contains(t, wrapped.Error(), "no primary repository")
}
