package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/provisio/prov/internal/errors"
)

func TestExitCodeFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"nil error returns success", nil, ExitSuccess},
		{"not found", oerrors.NewNotFoundError("product \"x\" is not installed", "", ""), ExitNotFound},
		{"incompatible api", oerrors.NewIncompatibleAPIError("agent", "2.0.0", "1.4.0"), ExitIncompatibleAPIVersion},
		{"deployment failed", fmt.Errorf("%w: step 1", oerrors.ErrDeploymentFailed), ExitDeploymentFailed},
		{"configuration missing", oerrors.NewConfigurationMissingError("no repository", "", ""), ExitConfigurationMissing},
		{"locked", oerrors.Wrap(oerrors.ErrLocked, "working folder"), ExitLocked},
		{"validation", oerrors.NewValidationError("bad", "", ""), ExitValidationError},
		{"connectivity", oerrors.Wrap(oerrors.ErrConnectivity, "repo down"), ExitConnectivityError},
		{"unknown error returns general error", errors.New("boom"), ExitGeneralError},
		{"explicit exit error", NewExitError(errors.New("x"), ExitLocked), ExitLocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ExitCodeFromError(tt.err))
		})
	}
}

func TestExitWith(t *testing.T) {
	assert.NoError(t, exitWith(nil))

	err := exitWith(fmt.Errorf("install: %w", oerrors.ErrDeploymentFailed))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitDeploymentFailed, exitErr.Code)
	assert.ErrorIs(t, err, oerrors.ErrDeploymentFailed)

	pre := NewExitError(errors.New("x"), ExitNotFound)
	assert.Same(t, pre, exitWith(pre))
}

func TestExitCodeConstants(t *testing.T) {
	assert.Equal(t, 0, ExitSuccess)
	assert.Equal(t, 5, ExitNotFound)
	assert.Equal(t, 6, ExitIncompatibleAPIVersion)
	assert.Equal(t, 7, ExitDeploymentFailed)
	assert.Equal(t, 8, ExitConfigurationMissing)
	assert.Equal(t, "Deployment Failed", ExitCodeName(ExitDeploymentFailed))
	assert.Equal(t, "Unknown", ExitCodeName(42))
}
