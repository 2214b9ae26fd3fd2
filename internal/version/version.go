// Package version provides version information for prov and the deployment
// API compatibility rule.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables set via ldflags.
var (
	// Version is the CLI version (set via ldflags).
	Version = "v0.0.0-dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// APIVersion is the deployment API version this engine serves.
const APIVersion = "1.4.0"

// APIGroup and APIName identify the deployment API artifact products depend on.
const (
	APIGroup = "io.provisio"
	APIName  = "prov-api"
)

// unstableMarkers flag development builds of the API, which are always accepted.
var unstableMarkers = []string{"-SNAPSHOT", "-dev"}

// Info contains version information.
type Info struct {
	// Version is the CLI version (set via ldflags).
	Version string `json:"version"`

	// GitCommit is the git commit hash.
	GitCommit string `json:"gitCommit"`

	// BuildDate is the build timestamp.
	BuildDate string `json:"buildDate"`

	// GoVersion is the Go version used to build.
	GoVersion string `json:"goVersion"`

	// APIVersion is the deployment API version served.
	APIVersion string `json:"apiVersion"`
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		APIVersion: APIVersion,
	}
}

// String returns a human-readable version string.
func (i Info) String() string {
	return fmt.Sprintf("prov:\n  Version:  %s\n  Build ID: %s/%s\n  Go:       %s\n\nDeployment API:\n  Version:  %s",
		i.Version, i.BuildDate, i.GitCommit, i.GoVersion, i.APIVersion)
}

// IsUnstable reports whether v carries a development marker.
func IsUnstable(v string) bool {
	for _, m := range unstableMarkers {
		if strings.HasSuffix(v, m) {
			return true
		}
	}
	return false
}

// APICompatible checks whether a product built against declared can be served
// by an engine at engine. Versions are compatible if MAJOR and MINOR match.
// Unstable declared versions are always compatible.
func APICompatible(engine, declared string) bool {
	if IsUnstable(declared) {
		return true
	}

	engineParts := strings.Split(strings.TrimPrefix(engine, "v"), ".")
	declParts := strings.Split(strings.TrimPrefix(declared, "v"), ".")

	if len(engineParts) < 2 || len(declParts) < 2 {
		return false
	}

	return engineParts[0] == declParts[0] && engineParts[1] == declParts[1]
}

// CompatibilityMessage returns a message explaining API compatibility.
func CompatibilityMessage(engine, declared string) string {
	if APICompatible(engine, declared) {
		return "compatible"
	}

	engineParts := strings.Split(strings.TrimPrefix(engine, "v"), ".")
	declParts := strings.Split(strings.TrimPrefix(declared, "v"), ".")

	if len(engineParts) >= 2 && len(declParts) >= 2 {
		if engineParts[0] != declParts[0] {
			return "incompatible - MAJOR version mismatch"
		}
		if engineParts[1] != declParts[1] {
			return "incompatible - MINOR version mismatch"
		}
	}

	return "incompatible - invalid version format"
}
