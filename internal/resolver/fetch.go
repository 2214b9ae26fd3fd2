package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/provisio/prov/internal/coordinate"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/repository"
)

// tier is where a located file currently lives.
type tier int

const (
	tierWorking tier = iota
	tierPortable
	tierStaged
)

type located struct {
	path string
	tier tier
}

// fetcher locates files for one call. Remote files land in the staging
// area until install moves them into the cache tiers.
type fetcher struct {
	r       *Resolver
	staging string

	mu      sync.Mutex
	files   map[coordinate.Coordinate]located
	missing sets.Set[coordinate.Coordinate]
	chain   repository.Chain
	clients map[string]repository.Client
}

func newFetcher(r *Resolver, staging string) *fetcher {
	return &fetcher{
		r:       r,
		staging: staging,
		files:   make(map[coordinate.Coordinate]located),
		missing: sets.New[coordinate.Coordinate](),
		clients: make(map[string]repository.Client),
	}
}

// fetched returns the number of files downloaded so far.
func (f *fetcher) fetched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.files {
		if l.tier == tierStaged {
			n++
		}
	}
	return n
}

// fetch returns the current location of c.
func (f *fetcher) fetch(ctx context.Context, c coordinate.Coordinate) (string, error) {
	f.mu.Lock()
	if l, ok := f.files[c]; ok {
		f.mu.Unlock()
		return l.path, nil
	}
	f.mu.Unlock()

	l, err := f.locate(ctx, c)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[c] = l
	return l.path, nil
}

// fetchOptional is like fetch but reports absence instead of failing.
func (f *fetcher) fetchOptional(ctx context.Context, c coordinate.Coordinate) (string, bool) {
	f.mu.Lock()
	if f.missing.Has(c) {
		f.mu.Unlock()
		return "", false
	}
	f.mu.Unlock()

	path, err := f.fetch(ctx, c)
	if err != nil {
		output.Debug("optional artifact unavailable", "artifact", c.String(), "err", err)
		f.mu.Lock()
		f.missing.Insert(c)
		f.mu.Unlock()
		return "", false
	}
	return path, true
}

func (f *fetcher) locate(ctx context.Context, c coordinate.Coordinate) (located, error) {
	if l, ok := f.locateCached(c); ok {
		return l, nil
	}

	client, err := f.client(ctx, c)
	if err != nil {
		return located{}, err
	}
	rc, err := client.Fetch(ctx, c)
	if err != nil {
		return located{}, err
	}
	defer rc.Close()

	path := repository.LocalPath(f.staging, c)
	if err := writeStream(path, rc); err != nil {
		return located{}, fmt.Errorf("staging %s: %w", c, err)
	}
	output.Debug("fetched", "artifact", c.String(), "repository", client.Location())
	return located{path: path, tier: tierStaged}, nil
}

// locateCached looks c up in the working tier, then the portable tier.
func (f *fetcher) locateCached(c coordinate.Coordinate) (located, bool) {
	if repository.Exists(f.r.opts.WorkingDir, c) {
		return located{path: repository.LocalPath(f.r.opts.WorkingDir, c), tier: tierWorking}, true
	}
	if dir := f.r.opts.PortableDir; dir != "" && repository.Exists(dir, c) {
		return located{path: repository.LocalPath(dir, c), tier: tierPortable}, true
	}
	return located{}, false
}

// cached reports whether c was located in a cache tier.
func (f *fetcher) cached(c coordinate.Coordinate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.files[c]
	return ok && l.tier != tierStaged
}

// client returns the first repository offering c's version. The catalog
// chain is built on first remote access only.
func (f *fetcher) client(ctx context.Context, c coordinate.Coordinate) (repository.Client, error) {
	key := c.Prefix() + ":" + c.Version

	f.mu.Lock()
	if cl, ok := f.clients[key]; ok {
		f.mu.Unlock()
		return cl, nil
	}
	chain := f.chain
	f.mu.Unlock()

	if chain == nil {
		var err error
		if chain, err = f.r.opts.Catalog.Chain(ctx); err != nil {
			return nil, err
		}
	}
	cl, err := chain.FindVersion(ctx, c)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.chain = chain
	f.clients[key] = cl
	return cl, nil
}

// pom returns the POM of c, or an empty POM when none is published. A POM
// is installed before its artifact, so a cached artifact with no POM beside
// it has none published and no repository is asked.
func (f *fetcher) pom(ctx context.Context, c coordinate.Coordinate) (*repository.POM, error) {
	var path string
	if f.cached(c) {
		l, ok := f.locateCached(c.POM())
		if !ok {
			return &repository.POM{}, nil
		}
		f.mu.Lock()
		f.files[c.POM()] = l
		f.mu.Unlock()
		path = l.path
	} else {
		p, ok := f.fetchOptional(ctx, c.POM())
		if !ok {
			return &repository.POM{}, nil
		}
		path = p
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	pom, err := repository.ParsePOM(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.POM(), err)
	}
	return pom, nil
}

// closure resolves root and its runtime dependencies breadth first. The
// nearest declaration of a group:name wins. Each level is fetched in
// parallel.
func (f *fetcher) closure(ctx context.Context, root coordinate.Coordinate) ([]coordinate.Coordinate, error) {
	seen := sets.New(root.Prefix())
	level := []coordinate.Coordinate{root}
	var out []coordinate.Coordinate

	for len(level) > 0 {
		poms := make([]*repository.POM, len(level))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.r.opts.Concurrency)
		for i, c := range level {
			g.Go(func() error {
				if _, err := f.fetch(gctx, c); err != nil {
					return err
				}
				pom, err := f.pom(gctx, c)
				poms[i] = pom
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out = append(out, level...)
		var next []coordinate.Coordinate
		for _, pom := range poms {
			for _, dep := range pom.Runtime() {
				if seen.Has(dep.Prefix()) {
					continue
				}
				seen.Insert(dep.Prefix())
				next = append(next, dep)
			}
		}
		level = next
	}
	return out, nil
}

// install moves every located file of coords into the working tier, in
// order. Staged files are also copied into the portable tier when one is
// configured. Coordinates that were never located are skipped.
func (f *fetcher) install(coords []coordinate.Coordinate) error {
	f.r.installMu.Lock()
	defer f.r.installMu.Unlock()

	done := sets.New[coordinate.Coordinate]()
	for _, c := range coords {
		if done.Has(c) {
			continue
		}
		done.Insert(c)

		f.mu.Lock()
		l, ok := f.files[c]
		f.mu.Unlock()
		if !ok || l.tier == tierWorking {
			continue
		}

		dst := repository.LocalPath(f.r.opts.WorkingDir, c)
		switch l.tier {
		case tierPortable:
			if err := linkFile(l.path, dst); err != nil {
				return fmt.Errorf("materializing %s: %w", c, err)
			}
		case tierStaged:
			if dir := f.r.opts.PortableDir; dir != "" && !repository.Exists(dir, c) {
				if err := copyFile(l.path, repository.LocalPath(dir, c)); err != nil {
					return fmt.Errorf("installing %s into portable repository: %w", c, err)
				}
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			if err := os.Rename(l.path, dst); err != nil {
				return fmt.Errorf("installing %s: %w", c, err)
			}
		}

		f.mu.Lock()
		f.files[c] = located{path: dst, tier: tierWorking}
		f.mu.Unlock()
	}
	return nil
}

func writeStream(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// linkFile places src at dst through a hard link, falling back to a copy
// across filesystems. dst appears atomically.
func linkFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".link-tmp"
	_ = os.Remove(tmp)
	if err := os.Link(src, tmp); err != nil {
		return copyFile(src, dst)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// copyFile copies src to dst through a temporary file and rename.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
