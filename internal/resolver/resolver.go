// Package resolver downloads products and their component dependency
// closures into the local cache tiers and builds the per-component
// deployment contexts.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/provisio/prov/internal/catalog"
	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/loader"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/product"
	"github.com/provisio/prov/internal/repository"
	"github.com/provisio/prov/internal/version"
)

// DefaultConcurrency bounds parallel fetches within one call.
const DefaultConcurrency = 8

// stagingDir is the per-call download area inside the working repository.
const stagingDir = ".staging"

// Options configures a Resolver.
type Options struct {
	Catalog *catalog.Catalog
	Loader  *loader.Loader

	// WorkingDir is the private working repository.
	WorkingDir string

	// PortableDir is the optional shared repository. Empty disables it.
	PortableDir string

	// TargetDir is the root folder products are deployed into.
	TargetDir string

	// Concurrency bounds parallel fetches. Zero means DefaultConcurrency.
	Concurrency int
}

// Artifact is one cached file.
type Artifact struct {
	Coordinate coordinate.Coordinate `json:"coordinate"`
	File       string                `json:"file"`
}

// Resolution is the result of downloading one product version.
type Resolution struct {
	Product   Artifact
	Legacy    bool
	Structure *product.Structure
	Deployers *product.Registry

	// Components maps each component artifact to its dependency closure,
	// the artifact itself first.
	Components map[coordinate.Coordinate][]Artifact

	// Contexts holds one deployment context per component, in declared order.
	Contexts []product.Context
}

// Context returns the deployment context of the named component.
func (r *Resolution) Context(component string) (product.Context, bool) {
	for _, c := range r.Contexts {
		if c.Component == component {
			return c, true
		}
	}
	return product.Context{}, false
}

// Resolver resolves artifacts through the working tier, the portable tier
// and the catalog's repositories, in that order.
type Resolver struct {
	opts       Options
	workingRef repository.Reference

	// installMu serializes moves into the cache tiers.
	installMu sync.Mutex
}

// New returns a Resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Catalog == nil || opts.Loader == nil {
		return nil, fmt.Errorf("resolver needs a catalog and a loader")
	}
	if opts.WorkingDir == "" {
		return nil, fmt.Errorf("resolver needs a working directory")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	ref, err := repository.ParseReference(opts.WorkingDir)
	if err != nil {
		return nil, err
	}
	opts.WorkingDir = ref.URL
	return &Resolver{opts: opts, workingRef: ref}, nil
}

// WorkingDir returns the absolute working repository root.
func (r *Resolver) WorkingDir() string {
	return r.opts.WorkingDir
}

func (r *Resolver) newStaging() (string, func(), error) {
	dir := filepath.Join(r.opts.WorkingDir, stagingDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating staging area: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			output.Warn("removing staging area", "path", dir, "err", err)
		}
	}, nil
}

// Get returns the working-tier file of c, downloading it (and its POM when
// one is published) if it is not cached yet.
func (r *Resolver) Get(ctx context.Context, c coordinate.Coordinate) (string, error) {
	if repository.Exists(r.opts.WorkingDir, c) {
		return repository.LocalPath(r.opts.WorkingDir, c), nil
	}

	staging, cleanup, err := r.newStaging()
	if err != nil {
		return "", err
	}
	defer cleanup()

	f := newFetcher(r, staging)
	if _, err := f.fetch(ctx, c); err != nil {
		return "", err
	}
	f.fetchOptional(ctx, c.POM())

	if err := f.install([]coordinate.Coordinate{c.POM(), c}); err != nil {
		return "", err
	}
	if err := repository.WriteMetadata(r.opts.WorkingDir, c); err != nil {
		return "", fmt.Errorf("recording %s: %w", c, err)
	}
	return repository.LocalPath(r.opts.WorkingDir, c), nil
}

// Download resolves product name at version.
//
// Steps:
//  1. Look the product up in the catalog.
//  2. Fetch the product artifact and POM (working tier, portable tier, then
//     the catalog's repositories).
//  3. Check the declared deployment API version unless the product is legacy.
//  4. Load the product structure from the artifact.
//  5. Resolve every component's dependency closure in parallel batches.
//  6. Install staged files, each POM before its artifact and the product
//     artifact last, so a cached product artifact implies a complete closure.
//  7. Record the version locally and build the deployment contexts.
func (r *Resolver) Download(ctx context.Context, name, ver string) (*Resolution, error) {
	// Step 1: catalog lookup.
	info, prefix, err := r.opts.Catalog.Product(ctx, name)
	if err != nil {
		return nil, err
	}
	if ver == "" {
		return nil, oerrors.NewNotFoundError(fmt.Sprintf("no version given for product %q", name), "", "")
	}
	c := prefix.WithVersion(ver)
	log := output.ProductLogger(name)

	staging, cleanup, err := r.newStaging()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	f := newFetcher(r, staging)

	// Step 2: product artifact.
	productFile, err := f.fetch(ctx, c)
	if err != nil {
		if oerrors.Is(err, oerrors.ErrNotFound) {
			return nil, oerrors.NewNotFoundError(
				fmt.Sprintf("product %q has no version %s in any repository", name, ver),
				"",
				"Run 'prov refresh "+name+"' to update the known versions.",
			)
		}
		return nil, err
	}
	pom, err := f.pom(ctx, c)
	if err != nil {
		return nil, err
	}

	// Step 3: API compatibility.
	if !info.Legacy {
		if err := checkAPI(c, pom); err != nil {
			return nil, err
		}
	}

	// Step 4: structure.
	ld, err := r.opts.Loader.Load(ctx, productFile, c)
	if err != nil {
		return nil, err
	}

	// Step 5: component closures.
	closures := make(map[coordinate.Coordinate][]coordinate.Coordinate, len(ld.Structure.Components))
	var install []coordinate.Coordinate
	for _, comp := range ld.Structure.Components {
		closure, err := f.closure(ctx, comp.Artifact)
		if err != nil {
			return nil, fmt.Errorf("resolving component %s: %w", comp.Name, err)
		}
		closures[comp.Artifact] = closure
		for _, dep := range closure {
			install = append(install, dep.POM(), dep)
		}
	}

	// Step 6: install, product artifact last.
	install = append(install, c.POM(), c)
	if err := f.install(install); err != nil {
		return nil, err
	}
	log.Debug("product cached", "version", ver, "fetched", f.fetched(), "components", len(closures))

	// Step 7: bookkeeping and contexts.
	if err := r.record(ctx, name, c, f.fetched() > 0); err != nil {
		return nil, err
	}

	res := &Resolution{
		Product:    Artifact{Coordinate: c, File: repository.LocalPath(r.opts.WorkingDir, c)},
		Legacy:     info.Legacy,
		Structure:  ld.Structure,
		Deployers:  ld.Deployers,
		Components: make(map[coordinate.Coordinate][]Artifact, len(closures)),
	}
	for _, comp := range ld.Structure.Components {
		arts := make([]Artifact, 0, len(closures[comp.Artifact]))
		files := make([]string, 0, len(closures[comp.Artifact]))
		for _, dep := range closures[comp.Artifact] {
			path := repository.LocalPath(r.opts.WorkingDir, dep)
			arts = append(arts, Artifact{Coordinate: dep, File: path})
			files = append(files, path)
		}
		res.Components[comp.Artifact] = arts
		res.Contexts = append(res.Contexts, product.Context{
			Product:   name,
			Version:   ver,
			Component: comp.Name,
			Artifact:  comp.Artifact,
			Files:     files,
			Target:    r.targetDir(name),
			Params:    ld.Params,
		})
	}
	return res, nil
}

func (r *Resolver) targetDir(name string) string {
	if r.opts.TargetDir == "" {
		return ""
	}
	return filepath.Join(r.opts.TargetDir, name)
}

// record makes the cached version visible to later lookups without a
// remote call.
func (r *Resolver) record(ctx context.Context, name string, c coordinate.Coordinate, fetched bool) error {
	if err := repository.WriteMetadata(r.opts.WorkingDir, c); err != nil {
		return fmt.Errorf("recording %s: %w", c, err)
	}
	if r.opts.PortableDir != "" && fetched {
		if err := repository.WriteMetadata(r.opts.PortableDir, c); err != nil {
			return fmt.Errorf("recording %s in portable repository: %w", c, err)
		}
	}

	cat := r.opts.Catalog
	if err := cat.AddVersion(ctx, name, c.Version); err != nil {
		return err
	}
	cat.AppendLocal(r.workingRef)
	return cat.MarkDownloaded(ctx, name, c.Version)
}

// checkAPI rejects products built against an incompatible deployment API.
// A product that declares no API dependency is accepted.
func checkAPI(c coordinate.Coordinate, pom *repository.POM) error {
	declared, ok := pom.DependencyVersion(version.APIGroup, version.APIName)
	if !ok {
		return nil
	}
	if version.APICompatible(version.APIVersion, declared) {
		return nil
	}
	return oerrors.NewIncompatibleAPIError(c.String(), declared, version.APIVersion)
}
