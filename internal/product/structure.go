// Package product defines the self-declared structure of a product, the
// component deployer API and the deployer type registry.
package product

import (
	"github.com/provisio/prov/internal/coordinate"
)

// Structure is the ordered list of components a product declares.
type Structure struct {
	Name       string        `json:"name" yaml:"name"`
	Version    string        `json:"version,omitempty" yaml:"version,omitempty"`
	Requires   []Requirement `json:"requires,omitempty" yaml:"requires,omitempty"`
	Components []Component   `json:"components" yaml:"components"`
}

// Requirement is another product deployed before this one.
type Requirement struct {
	Product string `json:"product" yaml:"product"`
	Version string `json:"version" yaml:"version"`
}

// Component is one deployable unit with its own artifact and procedure.
type Component struct {
	Name      string                `json:"name" yaml:"name"`
	Artifact  coordinate.Coordinate `json:"artifact" yaml:"artifact"`
	Procedure Procedure             `json:"procedure" yaml:"procedure"`
}

// Procedure is the ordered list of deployer steps of a component.
type Procedure []Step

// Step references a deployer type and its parameters.
type Step struct {
	Type   string            `json:"type" yaml:"type"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Coordinates returns the component artifacts in declared order.
func (s *Structure) Coordinates() []coordinate.Coordinate {
	out := make([]coordinate.Coordinate, 0, len(s.Components))
	for _, c := range s.Components {
		out = append(out, c.Artifact)
	}
	return out
}

// Component returns the component named name.
func (s *Structure) Component(name string) (Component, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Context is the runtime input of one component's deployers.
type Context struct {
	// Product and Version identify the product being deployed.
	Product string `json:"product"`
	Version string `json:"version"`

	// Component is the component name.
	Component string `json:"component"`

	// Artifact is the component artifact coordinate.
	Artifact coordinate.Coordinate `json:"artifact"`

	// Files are the cached files of the component: its own artifact first,
	// then its transitive dependencies in resolution order.
	Files []string `json:"files"`

	// Target is the folder the component is deployed into.
	Target string `json:"target"`

	// Params are product-wide key/value parameters.
	Params map[string]string `json:"params,omitempty"`
}

// ArtifactFile returns the component's own artifact file.
func (c Context) ArtifactFile() string {
	if len(c.Files) == 0 {
		return ""
	}
	return c.Files[0]
}
