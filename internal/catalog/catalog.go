// Package catalog provides the cached product catalog: the known products
// and the ordered list of repositories that may serve them.
package catalog

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"

	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/repository"
	"github.com/provisio/prov/internal/version"
)

// State is the load state of the catalog.
type State int

const (
	// Unloaded means no document has been read yet.
	Unloaded State = iota
	// Stale means the document was read from the local cache.
	Stale
	// Fresh means the document was downloaded during this process.
	Fresh
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stale:
		return "loaded(stale)"
	case Fresh:
		return "loaded(fresh)"
	default:
		return "unloaded"
	}
}

// documentExtension is the artifact extension of the published catalog.
const documentExtension = "yaml"

// ClientFactory builds a repository client for a reference.
type ClientFactory func(repository.Reference) (repository.Client, error)

// Options configures a Catalog.
type Options struct {
	// Primary is the repository the catalog is published to. Nil means no
	// primary repository is configured.
	Primary repository.Client

	// Prefix is the group:name of the catalog artifact.
	Prefix coordinate.Coordinate

	// Dir is the cache directory for catalog.yaml and versions.yaml.
	Dir string

	// NewClient builds clients for the repositories the document lists.
	// Defaults to repository.New.
	NewClient ClientFactory

	// Username and Password are applied to listed http repositories that
	// carry no credentials of their own.
	Username string
	Password string
}

// Catalog is the product list. Safe for concurrent use.
type Catalog struct {
	mu sync.Mutex

	opts     Options
	state    State
	doc      *Document
	versions Versions
	local    []repository.Reference
}

// New returns an unloaded catalog.
func New(opts Options) *Catalog {
	if opts.NewClient == nil {
		opts.NewClient = func(ref repository.Reference) (repository.Client, error) {
			return repository.New(ref)
		}
	}
	return &Catalog{opts: opts}
}

// State returns the current load state.
func (c *Catalog) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Catalog) documentPath() string {
	return filepath.Join(c.opts.Dir, "catalog.yaml")
}

func (c *Catalog) versionsPath() string {
	return filepath.Join(c.opts.Dir, "versions.yaml")
}

// Load reads the cached document, downloading it on first use.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	if c.state != Unloaded {
		return nil
	}

	var doc Document
	found, err := readYAML(c.documentPath(), &doc)
	if err != nil {
		output.Warn("ignoring unreadable catalog cache", "path", c.documentPath(), "err", err)
	}
	if found && err == nil {
		if doc.Products == nil {
			doc.Products = make(map[string]ProductInfo)
		}
		c.doc = &doc
		c.state = Stale
		output.Debug("catalog loaded from cache", "path", c.documentPath(), "products", len(doc.Products))
		return nil
	}

	return c.refreshLocked(ctx)
}

// Refresh re-discovers and downloads the catalog document, replacing the
// cache. Cached version lists are dropped.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Catalog) refreshLocked(ctx context.Context) error {
	if c.opts.Primary == nil {
		return oerrors.NewConfigurationMissingError(
			"no primary repository configured",
			"",
			"Set 'repository' in the config file, PROV_REPOSITORY, or pass --repository.",
		)
	}

	meta, err := c.opts.Primary.ListVersions(ctx, c.opts.Prefix)
	if err != nil {
		return c.unreachable(err)
	}
	release := meta.Release()

	target := c.opts.Prefix.WithVersion(release).WithExtension(documentExtension)
	rc, err := c.opts.Primary.Fetch(ctx, target)
	if err != nil {
		return c.unreachable(err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return c.unreachable(err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return &oerrors.DetailError{
			Type:     "configuration missing",
			Message:  err.Error(),
			Location: c.opts.Primary.Location(),
			Cause:    oerrors.ErrConfigurationMissing,
		}
	}

	if c.doc != nil {
		doc.DownloadedProducts = mergeUnique(doc.DownloadedProducts, c.doc.DownloadedProducts)
	} else {
		var cached Document
		if ok, _ := readYAML(c.documentPath(), &cached); ok {
			doc.DownloadedProducts = mergeUnique(doc.DownloadedProducts, cached.DownloadedProducts)
		}
	}

	if err := writeYAML(c.documentPath(), doc); err != nil {
		return fmt.Errorf("caching catalog: %w", err)
	}
	if err := writeYAML(c.versionsPath(), Versions{}); err != nil {
		return fmt.Errorf("resetting version cache: %w", err)
	}

	c.doc = doc
	c.versions = Versions{}
	c.state = Fresh
	output.Debug("catalog downloaded", "version", release, "products", len(doc.Products), "repositories", len(doc.Repositories))
	return nil
}

func (c *Catalog) unreachable(err error) error {
	return &oerrors.DetailError{
		Type:     "configuration missing",
		Message:  fmt.Sprintf("catalog %s is unavailable", c.opts.Prefix.Prefix()),
		Location: c.opts.Primary.Location(),
		Hint:     "Check the primary repository URL and credentials.",
		Cause:    fmt.Errorf("%w: %w", oerrors.ErrConfigurationMissing, err),
	}
}

// Document returns a copy of the loaded document.
func (c *Catalog) Document(ctx context.Context) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return Document{}, err
	}
	doc := *c.doc
	return doc, nil
}

// Product returns the catalog entry of name.
func (c *Catalog) Product(ctx context.Context, name string) (ProductInfo, coordinate.Coordinate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.productLocked(ctx, name)
}

func (c *Catalog) productLocked(ctx context.Context, name string) (ProductInfo, coordinate.Coordinate, error) {
	if err := c.loadLocked(ctx); err != nil {
		return ProductInfo{}, coordinate.Coordinate{}, err
	}
	info, ok := c.doc.Products[name]
	if !ok {
		return ProductInfo{}, coordinate.Coordinate{}, oerrors.NewNotFoundError(
			fmt.Sprintf("product %q is not in the catalog", name),
			"",
			"Run 'prov list' to see known products, or 'prov refresh' to update the catalog.",
		)
	}
	prefix, err := coordinate.ParsePrefix(info.Coordinate)
	if err != nil {
		return ProductInfo{}, coordinate.Coordinate{}, fmt.Errorf("catalog entry %s: %w", name, err)
	}
	return info, prefix, nil
}

// Repositories returns the lookup chain in priority order: the repositories
// the document lists (or the primary when it lists none), then any appended
// local repositories.
func (c *Catalog) Repositories(ctx context.Context) ([]repository.Reference, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repositoriesLocked(ctx)
}

func (c *Catalog) repositoriesLocked(ctx context.Context) ([]repository.Reference, error) {
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}

	var refs []repository.Reference
	for _, raw := range c.doc.Repositories {
		ref, err := repository.ParseReference(raw)
		if err != nil {
			output.Warn("ignoring catalog repository", "repository", raw, "err", err)
			continue
		}
		refs = append(refs, ref.WithCredentials(c.opts.Username, c.opts.Password))
	}
	if len(refs) == 0 && c.opts.Primary != nil {
		ref, err := repository.ParseReference(c.opts.Primary.Location())
		if err == nil {
			refs = append(refs, ref.WithCredentials(c.opts.Username, c.opts.Password))
		}
	}
	if len(refs) == 0 {
		return nil, oerrors.NewConfigurationMissingError("the catalog lists no repositories", c.documentPath(), "")
	}

	for _, l := range c.local {
		if !slices.Contains(refs, l) {
			refs = append(refs, l)
		}
	}
	return refs, nil
}

// Chain returns clients for Repositories, in order.
func (c *Catalog) Chain(ctx context.Context) (repository.Chain, error) {
	refs, err := c.Repositories(ctx)
	if err != nil {
		return nil, err
	}

	chain := make(repository.Chain, 0, len(refs))
	for _, ref := range refs {
		client, err := c.opts.NewClient(ref)
		if err != nil {
			output.Warn("ignoring repository", "repository", ref.String(), "err", err)
			continue
		}
		chain = append(chain, client)
	}
	return chain, nil
}

// AppendLocal adds ref as the lowest-priority repository. Idempotent.
func (c *Catalog) AppendLocal(ref repository.Reference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.local, ref) {
		c.local = append(c.local, ref)
	}
}

// Versions returns the known versions of a product, oldest first. Served
// from the version cache; on a miss the repositories are queried.
func (c *Catalog) Versions(ctx context.Context, name string) ([]string, error) {
	c.mu.Lock()
	if err := c.loadVersionsLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if v, ok := c.versions[name]; ok {
		c.mu.Unlock()
		return slices.Clone(v), nil
	}
	c.mu.Unlock()

	return c.RefreshVersions(ctx, name)
}

func (c *Catalog) loadVersionsLocked(ctx context.Context) error {
	if err := c.loadLocked(ctx); err != nil {
		return err
	}
	if c.versions != nil {
		return nil
	}
	versions := Versions{}
	if _, err := readYAML(c.versionsPath(), &versions); err != nil {
		output.Warn("ignoring unreadable version cache", "path", c.versionsPath(), "err", err)
		versions = Versions{}
	}
	c.versions = versions
	return nil
}

// RefreshVersions re-queries the repositories for one product's versions
// and caches the result. Other products are untouched.
func (c *Catalog) RefreshVersions(ctx context.Context, name string) ([]string, error) {
	_, prefix, err := c.Product(ctx, name)
	if err != nil {
		return nil, err
	}
	chain, err := c.Chain(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := chain.Versions(ctx, prefix)
	if err != nil {
		return nil, oerrors.NewNotFoundError(
			fmt.Sprintf("no repository lists versions of product %q", name),
			"",
			"",
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadVersionsLocked(ctx); err != nil {
		return nil, err
	}
	c.versions[name] = versions
	if err := writeYAML(c.versionsPath(), c.versions); err != nil {
		return nil, fmt.Errorf("caching versions: %w", err)
	}
	return slices.Clone(versions), nil
}

// AddVersion records a version seen outside the repositories, such as one
// installed from the working cache.
func (c *Catalog) AddVersion(ctx context.Context, name, ver string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadVersionsLocked(ctx); err != nil {
		return err
	}
	if v, ok := c.versions[name]; ok && !slices.Contains(v, ver) {
		v = append(v, ver)
		version.Sort(v)
		c.versions[name] = v
		return writeYAML(c.versionsPath(), c.versions)
	}
	return nil
}

// MarkDownloaded records that name at version is fully cached.
func (c *Catalog) MarkDownloaded(ctx context.Context, name, ver string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return err
	}

	key := downloadKey(name, ver)
	if slices.Contains(c.doc.DownloadedProducts, key) {
		return nil
	}
	c.doc.DownloadedProducts = append(c.doc.DownloadedProducts, key)
	return writeYAML(c.documentPath(), c.doc)
}

// IsDownloaded reports whether name at ver was marked downloaded.
func (c *Catalog) IsDownloaded(ctx context.Context, name, ver string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return false, err
	}
	return slices.Contains(c.doc.DownloadedProducts, downloadKey(name, ver)), nil
}

func mergeUnique(a, b []string) []string {
	out := slices.Clone(a)
	for _, v := range b {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
