package loader

import (
	"context"
	"fmt"
	"maps"

	"github.com/provisio/prov/internal/coordinate"
	"github.com/provisio/prov/internal/product"
)

// Namespace is the isolated view a product's entry point is given. Its
// deployer registry starts as a copy of the engine's base registry;
// registrations made here are visible only to this product's components.
type Namespace struct {
	Coordinate coordinate.Coordinate
	Archive    *Archive
	Deployers  *product.Registry

	// Params are product-wide parameters copied into every component context.
	Params map[string]string
}

// Alias registers name as a deployer of type base with preset parameters.
// Step parameters given at use sites override the presets.
func (ns *Namespace) Alias(name string, step product.Step) error {
	f, ok := ns.Deployers.Lookup(step.Type)
	if !ok {
		return fmt.Errorf("deployer %q: unknown base type %q", name, step.Type)
	}
	preset := maps.Clone(step.Params)
	return ns.Deployers.Register(name, func() product.Deployer {
		return &aliasDeployer{Deployer: f(), preset: preset}
	})
}

type aliasDeployer struct {
	product.Deployer
	preset map[string]string
}

func (a *aliasDeployer) Init(ctx context.Context, dc product.Context, params map[string]string) error {
	merged := make(map[string]string, len(a.preset)+len(params))
	maps.Copy(merged, a.preset)
	maps.Copy(merged, params)
	return a.Deployer.Init(ctx, dc, merged)
}
