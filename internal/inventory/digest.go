package inventory

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// SortComponents sorts components by artifact coordinate, then name.
func SortComponents(components []Component) {
	sort.SliceStable(components, func(i, j int) bool {
		ai, aj := components[i].Artifact.String(), components[j].Artifact.String()
		if ai != aj {
			return ai < aj
		}
		return components[i].Name < components[j].Name
	})
}

// ComputeStructureDigest computes a deterministic SHA256 digest over the
// identity of a component set. The digest is independent of input order.
func ComputeStructureDigest(components []Component) string {
	sorted := make([]Component, len(components))
	copy(sorted, components)
	SortComponents(sorted)

	h := sha256.New()
	for i, c := range sorted {
		fmt.Fprintf(h, "%s=%s", c.Name, c.Artifact)
		if i < len(sorted)-1 {
			h.Write([]byte("\n"))
		}
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}
