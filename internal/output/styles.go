package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Never use inline lipgloss.Color literals elsewhere.
var (
	// ColorCyan is used for identifiable nouns: product names, coordinates.
	ColorCyan = lipgloss.Color("14")

	// colorGreen is used for the "deployed" component status.
	colorGreen = lipgloss.Color("82")

	// ColorYellow is used for the "reboot" component status.
	ColorYellow = lipgloss.Color("220")

	// colorRed is used for the "undeployed" component status.
	colorRed = lipgloss.Color("196")

	// colorBoldRed is used for the "failed" component status (matches ERROR level).
	colorBoldRed = lipgloss.Color("204")

	// colorGreenCheck is used for the completion checkmark.
	colorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")

	// colorBlue is used for table headers.
	colorBlue = lipgloss.Color("12")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns (product names, coordinates).
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleAction styles action verbs (installing, upgrading, uninstalling).
	StyleAction = lipgloss.NewStyle().Bold(true)

	// StyleDim styles structural chrome (scope prefixes, separators).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// Component status constants.
const (
	StatusDeployed   = "deployed"
	StatusUndeployed = "undeployed"
	StatusUntouched  = "untouched"
	StatusStarted    = "started"
	StatusStopped    = "stopped"
	StatusReboot     = "reboot required"
	statusFailed     = "failed"
)

// StatusFailed is the status shown for a failed component chain.
const StatusFailed = statusFailed

// statusStyle returns the lipgloss style for a component status.
// Unknown statuses return an unstyled default.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case StatusDeployed, StatusStarted:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case StatusReboot:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusUntouched, StatusStopped:
		return lipgloss.NewStyle().Faint(true)
	case StatusUndeployed:
		return lipgloss.NewStyle().Foreground(colorRed)
	case statusFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(colorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// minComponentColumnWidth keeps status words aligned across lines.
const minComponentColumnWidth = 48

// FormatComponentLine renders a component with a right-aligned, color-coded status.
//
// Format: c:<component> <coordinate>  <status>
func FormatComponentLine(component, coordinate, status string) string {
	path := component
	if coordinate != "" {
		path = component + " " + coordinate
	}

	padding := minComponentColumnWidth - len(path)
	if padding < 2 {
		padding = 2
	}

	return StyleDim.Render("c:") +
		StyleNoun.Render(path) +
		strings.Repeat(" ", padding) +
		statusStyle(status).Render(status)
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(colorGreenCheck).Render("✔")
	return check + " " + msg
}

// FormatWarning renders a yellow exclamation with a message.
func FormatWarning(msg string) string {
	mark := lipgloss.NewStyle().Foreground(ColorYellow).Render("!")
	return mark + " " + msg
}
