package product

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Deployer performs one step of a component's deployment procedure.
// Init is called once with the component context and the step parameters
// before any action.
type Deployer interface {
	Init(ctx context.Context, dc Context, params map[string]string) error
	Deploy(ctx context.Context) Result
	Undeploy(ctx context.Context) Result
	Start(ctx context.Context) Result
	Stop(ctx context.Context) Result
}

// Factory creates a fresh Deployer.
type Factory func() Deployer

// Product is the capability every entry point must provide.
type Product interface {
	Structure(ctx context.Context) (*Structure, error)
}

// DeployerSource is implemented by products that contribute deployer types
// visible only to their own components.
type DeployerSource interface {
	Deployers() map[string]Factory
}

// Registry maps deployer type names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a deployer type. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("deployer type %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// New creates a deployer of the given type.
func (r *Registry) New(name string) (Deployer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown deployer type %q", name)
	}
	return f(), nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Clone returns an independent copy. Registrations on the copy never reach r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for k, v := range r.factories {
		out.factories[k] = v
	}
	return out
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
