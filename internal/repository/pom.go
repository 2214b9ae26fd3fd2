package repository

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/provisio/prov/internal/coordinate"
)

// POM is the dependency descriptor published next to every artifact.
type POM struct {
	XMLName      xml.Name        `xml:"project"`
	GroupID      string          `xml:"groupId"`
	ArtifactID   string          `xml:"artifactId"`
	Version      string          `xml:"version"`
	Packaging    string          `xml:"packaging"`
	Name         string          `xml:"name"`
	Description  string          `xml:"description"`
	Dependencies []POMDependency `xml:"dependencies>dependency"`
}

// POMDependency is one declared dependency.
type POMDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Type       string `xml:"type"`
	Classifier string `xml:"classifier"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}

// ParsePOM decodes a POM document.
func ParsePOM(r io.Reader) (*POM, error) {
	var p POM
	if err := xml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding pom: %w", err)
	}
	return &p, nil
}

// Runtime returns the dependencies needed at deployment time, in declared
// order. Test, provided and optional dependencies are excluded, as are
// entries with unresolved ${...} properties or without an exact version.
func (p *POM) Runtime() []coordinate.Coordinate {
	var deps []coordinate.Coordinate
	seen := make(map[coordinate.Coordinate]bool)

	for _, dep := range p.Dependencies {
		if dep.Scope == "test" || dep.Scope == "provided" || dep.Optional == "true" {
			continue
		}
		if unresolved(dep.GroupID) || unresolved(dep.ArtifactID) || unresolved(dep.Version) || dep.Version == "" {
			continue
		}
		ext := dep.Type
		if ext == "" {
			ext = coordinate.DefaultExtension
		}
		c := coordinate.Coordinate{
			Group:      dep.GroupID,
			Name:       dep.ArtifactID,
			Version:    dep.Version,
			Extension:  ext,
			Classifier: dep.Classifier,
		}
		if !seen[c] {
			seen[c] = true
			deps = append(deps, c)
		}
	}
	return deps
}

// DependencyVersion returns the declared version of group:name, in any scope.
func (p *POM) DependencyVersion(group, name string) (string, bool) {
	for _, dep := range p.Dependencies {
		if dep.GroupID == group && dep.ArtifactID == name {
			return dep.Version, true
		}
	}
	return "", false
}

func unresolved(s string) bool {
	return strings.Contains(s, "${")
}
