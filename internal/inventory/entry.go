package inventory

import (
	"github.com/provisio/prov/internal/product"
)

// NewComponent builds the installed entry of a component deployed with dc.
func NewComponent(c product.Component, dc product.Context) Component {
	return Component{
		Name:      c.Name,
		Artifact:  c.Artifact,
		Procedure: c.Procedure,
		Context:   dc,
	}
}

// IdentityEqual reports whether two components are the same installed unit.
// Identity is the artifact coordinate; the component name is excluded so a
// rename alone never causes a reinstall.
func IdentityEqual(a, b Component) bool {
	return a.Artifact == b.Artifact
}
