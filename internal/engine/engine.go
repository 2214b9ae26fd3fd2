// Package engine is the entry point the CLI drives: it wires the catalog,
// the resolver and the deployment orchestrator together and serializes
// every mutating call on the working folder.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/provisio/prov/internal/catalog"
	"github.com/provisio/prov/internal/config"
	"github.com/provisio/prov/internal/coordinate"
	"github.com/provisio/prov/internal/deployer"
	"github.com/provisio/prov/internal/deployers"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/inventory"
	"github.com/provisio/prov/internal/loader"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/product"
	"github.com/provisio/prov/internal/repository"
	"github.com/provisio/prov/internal/resolver"
)

// repositoryDir is the working repository inside the working folder.
const repositoryDir = "repository"

// Options configures an Engine.
type Options struct {
	// Config is the resolved configuration. Paths must be expanded.
	Config *config.Config

	// Repository is the primary repository URL. Empty leaves the catalog
	// to its cache.
	Repository string

	// NewClient builds repository clients. Defaults to repository.New with
	// the configured timeout and retries.
	NewClient catalog.ClientFactory

	// Deployers are extra deployer types made available to every product
	// next to the built-in ones.
	Deployers map[string]product.Factory

	// EntryPoints are extra product entry points.
	EntryPoints map[string]loader.EntryPoint
}

// Engine runs install, upgrade, uninstall and the read-only queries.
type Engine struct {
	// mu serializes mutating calls within the process; the lock file
	// serializes them across processes.
	mu sync.Mutex

	cfg      *config.Config
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	store    *inventory.Store
	orch     *deployer.Orchestrator
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("engine needs a configuration")
	}
	cfg := opts.Config.WithDefaults()

	newClient := opts.NewClient
	if newClient == nil {
		timeout, retries := cfg.HTTPTimeout(), cfg.HTTP.Retries
		newClient = func(ref repository.Reference) (repository.Client, error) {
			return repository.New(ref,
				repository.WithTimeout(timeout),
				repository.WithRetry(retries, time.Second),
			)
		}
	}

	var primary repository.Client
	if opts.Repository != "" {
		ref, err := repository.ParseReference(opts.Repository)
		if err != nil {
			return nil, oerrors.NewConfigurationMissingError(
				fmt.Sprintf("invalid repository %q: %v", opts.Repository, err), "", "")
		}
		if primary, err = newClient(ref.WithCredentials(cfg.Username, cfg.Password)); err != nil {
			return nil, err
		}
	}

	prefix, err := coordinate.ParsePrefix(cfg.Catalog.Coordinate)
	if err != nil {
		return nil, oerrors.NewValidationError(err.Error(), "catalog.coordinate", "")
	}
	cat := catalog.New(catalog.Options{
		Primary:   primary,
		Prefix:    prefix,
		Dir:       cfg.CacheDir,
		NewClient: newClient,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})

	base := deployers.NewRegistry(deployers.WithRebootExitCode(cfg.Deploy.RebootExitCode))
	for name, f := range opts.Deployers {
		if err := base.Register(name, f); err != nil {
			return nil, err
		}
	}
	entries := loader.NewRegistry()
	for id, ep := range opts.EntryPoints {
		if err := entries.Register(id, ep); err != nil {
			return nil, err
		}
	}

	res, err := resolver.New(resolver.Options{
		Catalog:     cat,
		Loader:      loader.New(base, entries),
		WorkingDir:  filepath.Join(cfg.WorkDir, repositoryDir),
		PortableDir: cfg.PortableRepository,
		TargetDir:   cfg.Deploy.Target,
	})
	if err != nil {
		return nil, err
	}

	store := inventory.NewStore(cfg.WorkDir)
	return &Engine{
		cfg:      cfg,
		catalog:  cat,
		resolver: res,
		store:    store,
		orch: deployer.New(deployer.Options{
			Resolver:   res,
			Store:      store,
			Base:       base,
			MaxHistory: cfg.Deploy.History,
		}),
	}, nil
}

// locked runs fn holding the process mutex and the working folder lock.
func (e *Engine) locked(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, err := inventory.AcquireLock(e.cfg.WorkDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			output.Warn("releasing working folder lock", "err", err)
		}
	}()
	return fn()
}

// Install deploys name at version. An empty version installs the latest
// known version.
func (e *Engine) Install(ctx context.Context, name, version string) (product.Result, error) {
	result := product.Failed
	err := e.locked(func() error {
		v, err := e.versionOrLatest(ctx, name, version, false)
		if err != nil {
			return err
		}
		output.ProductLogger(name).Info("installing", "version", v)
		result, err = e.orch.Deploy(ctx, name, v)
		return err
	})
	return result, err
}

// Upgrade moves an installed product to version. An empty version refreshes
// the product's versions and takes the latest.
func (e *Engine) Upgrade(ctx context.Context, name, version string) (product.Result, error) {
	result := product.Failed
	err := e.locked(func() error {
		rec, err := e.installed(name)
		if err != nil {
			return err
		}
		v, err := e.versionOrLatest(ctx, name, version, true)
		if err != nil {
			return err
		}
		output.ProductLogger(name).Info("upgrading", "from", rec.Version, "to", v)
		result, err = e.orch.Deploy(ctx, name, v)
		return err
	})
	return result, err
}

// Uninstall undeploys every component of name and forgets it.
func (e *Engine) Uninstall(ctx context.Context, name string) (product.Result, error) {
	result := product.Failed
	err := e.locked(func() error {
		var err error
		result, err = e.orch.Undeploy(ctx, name)
		return err
	})
	return result, err
}

// Start runs the start operation of an installed product.
func (e *Engine) Start(ctx context.Context, name string) (product.Result, error) {
	result := product.Failed
	err := e.locked(func() error {
		var err error
		result, err = e.orch.Start(ctx, name)
		return err
	})
	return result, err
}

// Stop runs the stop operation of an installed product.
func (e *Engine) Stop(ctx context.Context, name string) (product.Result, error) {
	result := product.Failed
	err := e.locked(func() error {
		var err error
		result, err = e.orch.Stop(ctx, name)
		return err
	})
	return result, err
}

// Plan computes what deploying name at version would change. An empty
// version plans the latest known version.
func (e *Engine) Plan(ctx context.Context, name, version string) (*deployer.Plan, error) {
	var plan *deployer.Plan
	err := e.locked(func() error {
		v, err := e.versionOrLatest(ctx, name, version, false)
		if err != nil {
			return err
		}
		plan, err = e.orch.Plan(ctx, name, v)
		return err
	})
	return plan, err
}

// Refresh re-downloads the catalog, or re-queries the versions of one
// product when name is given.
func (e *Engine) Refresh(ctx context.Context, name string) error {
	return e.locked(func() error {
		if name == "" {
			return e.catalog.Refresh(ctx)
		}
		versions, err := e.catalog.RefreshVersions(ctx, name)
		if err != nil {
			return err
		}
		output.ProductLogger(name).Debug("versions refreshed", "count", len(versions))
		return nil
	})
}

// List returns every installed product and every catalog product. An
// unavailable catalog still lists the installed products.
func (e *Engine) List(ctx context.Context) ([]output.ProductRow, error) {
	records, err := e.store.List()
	if err != nil {
		return nil, err
	}
	installed := make(map[string]*inventory.Record, len(records))
	for _, r := range records {
		installed[r.Name] = r
	}

	var names []string
	doc, err := e.catalog.Document(ctx)
	haveCatalog := err == nil
	if haveCatalog {
		names = doc.Names()
	} else {
		output.Warn("catalog unavailable, listing installed products only", "err", err)
	}
	for name := range installed {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	rows := make([]output.ProductRow, 0, len(names))
	for _, name := range names {
		row := output.ProductRow{Name: name}
		if r, ok := installed[name]; ok {
			row.Installed = r.Version
			row.Changed = r.LastTransitionTime
		}
		if haveCatalog {
			if versions, err := e.catalog.Versions(ctx, name); err != nil {
				output.Debug("no versions", "product", name, "err", err)
			} else if len(versions) > 0 {
				row.Available = versions
				row.Latest = versions[len(versions)-1]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Installed returns the deployed-state record of name.
func (e *Engine) Installed(name string) (*inventory.Record, error) {
	return e.installed(name)
}

// CachePaths returns the folders ClearCache removes.
func (e *Engine) CachePaths() []string {
	return []string{e.cfg.CacheDir, e.resolver.WorkingDir()}
}

// ClearCache removes the catalog cache and the working repository. The
// deployed state is kept; later calls download again what they need.
func (e *Engine) ClearCache() error {
	return e.locked(func() error {
		for _, dir := range e.CachePaths() {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("removing %s: %w", dir, err)
			}
			output.Debug("removed", "path", dir)
		}
		return nil
	})
}

func (e *Engine) installed(name string) (*inventory.Record, error) {
	rec, err := e.store.Get(name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, oerrors.NewNotFoundError(
			fmt.Sprintf("product %q is not installed", name),
			"",
			"Run 'prov install "+name+"' first.",
		)
	}
	return rec, nil
}

// versionOrLatest returns version, or the newest known version of name when
// version is empty.
func (e *Engine) versionOrLatest(ctx context.Context, name, version string, refresh bool) (string, error) {
	if version != "" {
		return version, nil
	}
	var versions []string
	var err error
	if refresh {
		versions, err = e.catalog.RefreshVersions(ctx, name)
	} else {
		versions, err = e.catalog.Versions(ctx, name)
	}
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", oerrors.NewNotFoundError(
			fmt.Sprintf("no versions of product %q are known", name),
			"",
			"Run 'prov refresh "+name+"' to query the repositories.",
		)
	}
	return versions[len(versions)-1], nil
}
