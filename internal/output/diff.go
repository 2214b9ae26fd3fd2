package output

import (
	"fmt"
	"strings"
)

// ModifiedItem is a component whose artifact changes between two versions.
type ModifiedItem struct {
	Name string
	Diff string
}

// RenderDiff renders a deployment plan: components to deploy, to undeploy,
// and those whose artifact changes in place.
func RenderDiff(added, removed []string, modified []ModifiedItem) string {
	if len(added) == 0 && len(removed) == 0 && len(modified) == 0 {
		return "No changes detected."
	}

	var sb strings.Builder

	if len(removed) > 0 {
		sb.WriteString(statusStyle(StatusUndeployed).Render("Undeploy:"))
		sb.WriteString("\n")
		for _, name := range removed {
			sb.WriteString("  - ")
			sb.WriteString(statusStyle(StatusUndeployed).Render(name))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(added) > 0 {
		sb.WriteString(statusStyle(StatusDeployed).Render("Deploy:"))
		sb.WriteString("\n")
		for _, name := range added {
			sb.WriteString("  + ")
			sb.WriteString(statusStyle(StatusDeployed).Render(name))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(modified) > 0 {
		sb.WriteString(statusStyle(StatusReboot).Render("Replace:"))
		sb.WriteString("\n")
		for _, mod := range modified {
			sb.WriteString("  ~ ")
			sb.WriteString(statusStyle(StatusReboot).Render(mod.Name))
			sb.WriteString("\n")
			sb.WriteString(IndentDiff(mod.Diff, "    "))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("Summary: ")
	sb.WriteString(diffSummary(len(added), len(removed), len(modified)))
	sb.WriteString("\n")

	return sb.String()
}

// diffSummary returns a summary string of changes.
func diffSummary(added, removed, modified int) string {
	if added == 0 && removed == 0 && modified == 0 {
		return "No changes"
	}

	parts := make([]string, 0, 3)
	if added > 0 {
		parts = append(parts, fmt.Sprintf("%d to deploy", added))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("%d to undeploy", removed))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("%d replaced", modified))
	}

	return strings.Join(parts, ", ")
}

// IndentDiff indents a diff string for display under a component name.
func IndentDiff(diff, indent string) string {
	if diff == "" {
		return ""
	}

	var sb strings.Builder
	for _, line := range strings.Split(diff, "\n") {
		if line != "" {
			sb.WriteString(indent)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
