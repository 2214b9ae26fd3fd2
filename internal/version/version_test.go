package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	require.NotEmpty(t, info.GoVersion, "GoVersion should be populated")
	assert.Equal(t, APIVersion, info.APIVersion)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:    "v1.0.0",
		GitCommit:  "abc123",
		BuildDate:  "2026-01-29",
		GoVersion:  "go1.25",
		APIVersion: "1.4.0",
	}

	str := info.String()

	assert.Contains(t, str, "v1.0.0")
	assert.Contains(t, str, "abc123")
	assert.Contains(t, str, "2026-01-29")
	assert.Contains(t, str, "go1.25")
	assert.Contains(t, str, "1.4.0")
}

func TestAPICompatible(t *testing.T) {
	tests := []struct {
		name     string
		engine   string
		declared string
		want     bool
	}{
		{"same version", "1.4.0", "1.4.0", true},
		{"patch differs", "1.4.0", "1.4.7", true},
		{"v prefix ignored", "v1.4.0", "1.4.2", true},
		{"minor differs", "1.4.0", "1.5.0", false},
		{"major differs", "1.4.0", "2.4.0", false},
		{"snapshot always accepted", "1.4.0", "3.0.0-SNAPSHOT", true},
		{"dev always accepted", "1.4.0", "0.1.0-dev", true},
		{"invalid declared", "1.4.0", "one", false},
		{"empty declared", "1.4.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, APICompatible(tt.engine, tt.declared))
		})
	}
}

func TestCompatibilityMessage(t *testing.T) {
	assert.Equal(t, "compatible", CompatibilityMessage("1.4.0", "1.4.9"))
	assert.Equal(t, "incompatible - MAJOR version mismatch", CompatibilityMessage("1.4.0", "2.4.0"))
	assert.Equal(t, "incompatible - MINOR version mismatch", CompatibilityMessage("1.4.0", "1.3.0"))
	assert.Equal(t, "incompatible - invalid version format", CompatibilityMessage("1.4.0", "1"))
}

func TestIsUnstable(t *testing.T) {
	assert.True(t, IsUnstable("1.0.0-SNAPSHOT"))
	assert.True(t, IsUnstable("1.0.0-dev"))
	assert.False(t, IsUnstable("1.0.0"))
	assert.False(t, IsUnstable("1.0.0-rc1"))
}
