// Package loader opens product artifacts and obtains their self-declared
// structure through the entry point named in the archive manifest.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/product"
)

// Loaded is a product artifact whose entry point has been run.
type Loaded struct {
	Coordinate coordinate.Coordinate
	Structure  *product.Structure

	// Deployers resolves the step types of this product's procedures.
	Deployers *product.Registry

	Params map[string]string
}

// Loader loads product artifacts. Results are cached by coordinate, so an
// entry point runs at most once per artifact for the life of the Loader.
type Loader struct {
	base    *product.Registry
	entries *Registry

	mu    sync.Mutex
	cache map[coordinate.Coordinate]*Loaded
}

// New returns a Loader whose namespaces start from base deployers.
func New(base *product.Registry, entries *Registry) *Loader {
	if entries == nil {
		entries = NewRegistry()
	}
	return &Loader{
		base:    base,
		entries: entries,
		cache:   make(map[coordinate.Coordinate]*Loaded),
	}
}

// Load runs the entry point of the artifact at path.
//
// Loading proceeds in order:
//  1. Read the archive manifest and look up its Product-Entry-Point.
//  2. Give the entry point a fresh Namespace with a private deployer registry.
//  3. Check the returned object: it must be a product.Product, and a
//     product.DeployerSource contributes its types to the namespace.
//  4. Read the structure and check every procedure step resolves.
//
// Any failure is an ErrValidation; nothing is cached on failure.
func (l *Loader) Load(ctx context.Context, path string, c coordinate.Coordinate) (*Loaded, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ld, ok := l.cache[c]; ok {
		return ld, nil
	}

	// Step 1: manifest and entry point.
	archive, err := OpenArchive(path)
	if err != nil {
		return nil, oerrors.NewValidationError(err.Error(), path, "The artifact is not a product archive.")
	}
	id := archive.Manifest.EntryPoint()
	if id == "" {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("manifest has no %s attribute", EntryPointAttribute), path, "")
	}
	ep, ok := l.entries.lookup(id)
	if !ok {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("unknown entry point %q (available: %v)", id, l.entries.IDs()), path, "")
	}

	// Step 2: isolated namespace.
	ns := &Namespace{
		Coordinate: c,
		Archive:    archive,
		Deployers:  l.base.Clone(),
	}
	obj, err := ep(ns)
	if err != nil {
		if oerrors.Is(err, oerrors.ErrValidation) {
			return nil, err
		}
		return nil, oerrors.NewValidationError(fmt.Sprintf("entry point %q: %v", id, err), path, "")
	}

	// Step 3: capabilities.
	if obj == nil {
		return nil, oerrors.NewValidationError(fmt.Sprintf("entry point %q returned no product", id), path, "")
	}
	if src, ok := obj.(product.DeployerSource); ok {
		for name, f := range src.Deployers() {
			if err := ns.Deployers.Register(name, f); err != nil {
				return nil, oerrors.NewValidationError(err.Error(), path, "")
			}
		}
	}

	// Step 4: structure.
	s, err := obj.Structure(ctx)
	if err != nil {
		return nil, oerrors.NewValidationError(fmt.Sprintf("reading structure: %v", err), path, "")
	}
	if s.Name == "" {
		s.Name = c.Name
	}
	if s.Version == "" {
		s.Version = c.Version
	}
	for _, comp := range s.Components {
		for _, step := range comp.Procedure {
			if !ns.Deployers.Has(step.Type) {
				return nil, oerrors.NewValidationError(
					fmt.Sprintf("component %q uses unknown deployer type %q", comp.Name, step.Type),
					path,
					fmt.Sprintf("Known types: %v", ns.Deployers.Types()),
				)
			}
		}
	}

	ld := &Loaded{Coordinate: c, Structure: s, Deployers: ns.Deployers, Params: ns.Params}
	l.cache[c] = ld

	output.Debug("loaded product",
		"coordinate", c.String(),
		"entryPoint", id,
		"components", len(s.Components),
	)
	return ld, nil
}

// Forget drops a cached result.
func (l *Loader) Forget(c coordinate.Coordinate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, c)
}
