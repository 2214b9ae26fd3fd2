// Package errors provides the sentinel error taxonomy for prov.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for known conditions.
var (
	// ErrNotFound indicates a product, version, or artifact is absent from
	// every configured repository.
	ErrNotFound = errors.New("not found")

	// ErrIncompatibleAPIVersion indicates a product declares a deployment API
	// version the engine cannot serve. Never retried.
	ErrIncompatibleAPIVersion = errors.New("incompatible API version")

	// ErrDeploymentFailed indicates at least one component deployer returned FAILED.
	ErrDeploymentFailed = errors.New("deployment failed")

	// ErrConfigurationMissing indicates the catalog or repository list is
	// absent or unreachable.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrValidation indicates a document failed schema validation.
	ErrValidation = errors.New("validation error")

	// ErrConnectivity indicates a network connectivity issue.
	ErrConnectivity = errors.New("connectivity error")

	// ErrLocked indicates another process holds the working folder lock.
	ErrLocked = errors.New("working folder locked")
)

// DetailError captures structured error information for user-facing output.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is a file path or repository URL (optional).
	Location string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Context[k])
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// NewIncompatibleAPIError creates an incompatible API version error.
func NewIncompatibleAPIError(product, declared, engine string) error {
	return &DetailError{
		Type:    "incompatible API version",
		Message: fmt.Sprintf("product %s requires deployment API %s", product, declared),
		Context: map[string]string{
			"Engine API": engine,
		},
		Hint:  "Upgrade prov or pick a product version built against a compatible API.",
		Cause: ErrIncompatibleAPIVersion,
	}
}

// NewConfigurationMissingError creates a configuration error with details.
func NewConfigurationMissingError(message, location, hint string) error {
	return &DetailError{
		Type:     "configuration missing",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrConfigurationMissing,
	}
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
