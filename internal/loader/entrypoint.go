package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/provisio/prov/internal/product"
)

// DescriptorEntryPoint is the built-in entry point id. It reads the
// product structure from META-INF/product.yaml.
const DescriptorEntryPoint = "descriptor"

// DescriptorPath is the archive entry read by the descriptor entry point.
const DescriptorPath = "META-INF/product.yaml"

// EntryPoint creates the product object of an archive.
type EntryPoint func(ns *Namespace) (product.Product, error)

// Registry maps manifest entry point ids to entry points.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]EntryPoint
}

// NewRegistry returns a registry holding the built-in descriptor entry point.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]EntryPoint)}
	r.entries[DescriptorEntryPoint] = descriptorEntryPoint
	return r
}

// Register adds an entry point. Registering an id twice is an error.
func (r *Registry) Register(id string, ep EntryPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("entry point %q already registered", id)
	}
	r.entries[id] = ep
	return nil
}

func (r *Registry) lookup(id string) (EntryPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.entries[id]
	return ep, ok
}

// IDs returns the registered entry point ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type descriptorProduct struct {
	structure product.Structure
}

func (p *descriptorProduct) Structure(context.Context) (*product.Structure, error) {
	s := p.structure
	return &s, nil
}

func descriptorEntryPoint(ns *Namespace) (product.Product, error) {
	data, err := ns.Archive.ReadFile(DescriptorPath)
	if err != nil {
		return nil, err
	}
	d, err := product.ParseDescriptor(data, ns.Archive.Path+"!/"+DescriptorPath)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(d.Deployers))
	for name := range d.Deployers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ns.Alias(name, d.Deployers[name]); err != nil {
			return nil, err
		}
	}

	ns.Params = d.Params
	return &descriptorProduct{structure: d.Structure}, nil
}
