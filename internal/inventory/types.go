// Package inventory provides the deployed-state record: which version of
// each product is installed, with which components, and the history of
// changes that led there.
//
// The state document lives at <workdir>/state/deployed.yaml and is replaced
// atomically on every write.
package inventory

import (
	"github.com/provisio/prov/internal/coordinate"
	"github.com/provisio/prov/internal/product"
)

const (
	stateKind       = "DeployedState"
	stateAPIVersion = "prov.provisio.io/v1"
)

// State is the full deployed-state document.
type State struct {
	Kind       string             `json:"kind"`
	APIVersion string             `json:"apiVersion"`
	Products   map[string]*Record `json:"products"`
}

// NewState returns an empty state document.
func NewState() *State {
	return &State{
		Kind:       stateKind,
		APIVersion: stateAPIVersion,
		Products:   make(map[string]*Record),
	}
}

// Record is the installed state of one product.
type Record struct {
	Name     string                `json:"name"`
	Version  string                `json:"version"`
	Requires []product.Requirement `json:"requires,omitempty"`

	// Components are the installed components in declared order.
	Components []Component `json:"components"`

	// Index holds change IDs, newest first.
	Index   []string                `json:"index"`
	Changes map[string]*ChangeEntry `json:"changes"`

	LastTransitionTime string `json:"lastTransitionTime"` // RFC 3339
}

// Component is one installed component and the context it was deployed with.
type Component struct {
	Name      string                `json:"name"`
	Artifact  coordinate.Coordinate `json:"artifact"`
	Procedure product.Procedure     `json:"procedure"`
	Context   product.Context       `json:"context"`
}

// Action is the kind of change recorded.
type Action string

const (
	ActionDeploy   Action = "deploy"
	ActionUndeploy Action = "undeploy"
)

// ChangeEntry records one successful deploy or undeploy call.
type ChangeEntry struct {
	Action     Action         `json:"action"`
	Version    string         `json:"version"`
	Result     product.Result `json:"result"`
	Digest     string         `json:"digest"`
	Deployed   []string       `json:"deployed,omitempty"`
	Undeployed []string       `json:"undeployed,omitempty"`
	RunID      string         `json:"runId,omitempty"`
	Timestamp  string         `json:"timestamp"` // RFC 3339
}

// Latest returns the newest change entry, or nil.
func (r *Record) Latest() *ChangeEntry {
	if r == nil || len(r.Index) == 0 {
		return nil
	}
	return r.Changes[r.Index[0]]
}

// Structure returns the installed components as a product structure.
func (r *Record) Structure() *product.Structure {
	s := &product.Structure{Name: r.Name, Version: r.Version, Requires: r.Requires}
	for _, c := range r.Components {
		s.Components = append(s.Components, product.Component{
			Name:      c.Name,
			Artifact:  c.Artifact,
			Procedure: c.Procedure,
		})
	}
	return s
}
