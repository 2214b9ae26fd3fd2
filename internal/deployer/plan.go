package deployer

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"

	"github.com/provisio/prov/internal/inventory"
	"github.com/provisio/prov/internal/output"
)

// Plan is the set of chains a deploy or undeploy call runs.
type Plan struct {
	Product string
	From    string // installed version, empty when not installed
	To      string // target version, empty for undeploy

	// Undeploy holds removed components in reverse declared order.
	Undeploy []inventory.Component

	// Deploy holds added components in declared order.
	Deploy []inventory.Component

	// Untouched holds components present in both structures.
	Untouched []inventory.Component
}

// Diff compares the installed components with the target components by
// artifact coordinate.
func Diff(previous, target []inventory.Component) *Plan {
	p := &Plan{
		Undeploy: inventory.ComputeStaleSet(previous, target),
		Deploy:   inventory.ComputeStaleSet(target, previous),
	}
	slices.Reverse(p.Undeploy)

	added := sets.New[string]()
	for _, c := range p.Deploy {
		added.Insert(c.Artifact.String())
	}
	for _, c := range target {
		if !added.Has(c.Artifact.String()) {
			p.Untouched = append(p.Untouched, c)
		}
	}
	return p
}

// IsEmpty reports whether the plan runs no chain.
func (p *Plan) IsEmpty() bool {
	return len(p.Deploy) == 0 && len(p.Undeploy) == 0
}

// Summary returns a one-line summary of the plan.
func (p *Plan) Summary() string {
	if p.IsEmpty() {
		return "No changes"
	}
	parts := make([]string, 0, 3)
	if n := len(p.Deploy); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to deploy", n))
	}
	if n := len(p.Undeploy); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to undeploy", n))
	}
	if n := len(p.Untouched); n > 0 {
		parts = append(parts, fmt.Sprintf("%d untouched", n))
	}
	return strings.Join(parts, ", ")
}

// Render renders the plan. A component that keeps its name but changes
// artifact is shown as a replacement with a structural diff.
func (p *Plan) Render(useColor bool) (string, error) {
	removedByName := make(map[string]inventory.Component, len(p.Undeploy))
	for _, c := range p.Undeploy {
		removedByName[c.Name] = c
	}

	var added, removed []string
	var modified []output.ModifiedItem
	replaced := sets.New[string]()

	for _, c := range p.Deploy {
		prev, ok := removedByName[c.Name]
		if !ok {
			added = append(added, label(c))
			continue
		}
		diff, err := componentDiff(prev, c, useColor)
		if err != nil {
			return "", fmt.Errorf("comparing component %s: %w", c.Name, err)
		}
		replaced.Insert(c.Name)
		modified = append(modified, output.ModifiedItem{
			Name: fmt.Sprintf("%s %s -> %s", c.Name, prev.Artifact, c.Artifact),
			Diff: diff,
		})
	}
	for _, c := range p.Undeploy {
		if !replaced.Has(c.Name) {
			removed = append(removed, label(c))
		}
	}

	return output.RenderDiff(added, removed, modified), nil
}

func label(c inventory.Component) string {
	return c.Name + " " + c.Artifact.String()
}

// diffView is the part of a component compared in rendered plans.
type diffView struct {
	Name      string `json:"name"`
	Artifact  string `json:"artifact"`
	Procedure any    `json:"procedure"`
}

func componentDiff(prev, next inventory.Component, useColor bool) (string, error) {
	a, err := yaml.Marshal(diffView{Name: prev.Name, Artifact: prev.Artifact.String(), Procedure: prev.Procedure})
	if err != nil {
		return "", err
	}
	b, err := yaml.Marshal(diffView{Name: next.Name, Artifact: next.Artifact.String(), Procedure: next.Procedure})
	if err != nil {
		return "", err
	}
	return diffYAML(a, b, useColor)
}

// diffYAML computes a YAML diff using dyff. Returns "" when equal.
func diffYAML(from, to []byte, useColor bool) (string, error) {
	fromInput, err := parseYAMLInput("installed", from)
	if err != nil {
		return "", fmt.Errorf("parsing installed YAML: %w", err)
	}
	toInput, err := parseYAMLInput("target", to)
	if err != nil {
		return "", fmt.Errorf("parsing target YAML: %w", err)
	}

	report, err := dyff.CompareInputFiles(fromInput, toInput)
	if err != nil {
		return "", fmt.Errorf("comparing YAML: %w", err)
	}
	if len(report.Diffs) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	reportWriter := &dyff.HumanReport{
		Report:            report,
		DoNotInspectCerts: true,
		NoTableStyle:      !useColor,
		OmitHeader:        true,
	}
	if err := reportWriter.WriteReport(&buf); err != nil {
		return "", fmt.Errorf("rendering diff: %w", err)
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func parseYAMLInput(name string, data []byte) (ytbx.InputFile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ytbx.InputFile{Location: name}, nil
	}
	docs, err := ytbx.LoadYAMLDocuments(data)
	if err != nil {
		return ytbx.InputFile{}, err
	}
	return ytbx.InputFile{Location: name, Documents: docs}, nil
}
