package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	oerrors "github.com/provisio/prov/internal/errors"
)

var errNotInitialized = errors.New("configuration not loaded")

var productNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// parseProductRef splits a name[:version] argument.
func parseProductRef(arg string) (name, version string, err error) {
	name, version, _ = strings.Cut(strings.TrimSpace(arg), ":")
	if !productNamePattern.MatchString(name) {
		return "", "", oerrors.NewValidationError(
			fmt.Sprintf("invalid product name %q", name),
			"",
			"Product names are lowercase letters, digits, '.', '_' and '-'. Use name or name:version.",
		)
	}
	if strings.Contains(version, ":") {
		return "", "", oerrors.NewValidationError(
			fmt.Sprintf("invalid product reference %q", arg), "", "Use name or name:version.")
	}
	return name, version, nil
}
