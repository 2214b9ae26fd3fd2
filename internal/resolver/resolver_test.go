package resolver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provisio/prov/internal/catalog"
	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/loader"
	"github.com/provisio/prov/internal/product"
	"github.com/provisio/prov/internal/repository"
	"github.com/provisio/prov/internal/testutil"
)

type countingClient struct {
	repository.Client
	calls *atomic.Int32
}

func (c *countingClient) ListVersions(ctx context.Context, prefix coordinate.Coordinate) (*repository.Metadata, error) {
	c.calls.Add(1)
	return c.Client.ListVersions(ctx, prefix)
}

func (c *countingClient) Fetch(ctx context.Context, co coordinate.Coordinate) (io.ReadCloser, error) {
	c.calls.Add(1)
	return c.Client.Fetch(ctx, co)
}

type nopDeployer struct{}

func (nopDeployer) Init(context.Context, product.Context, map[string]string) error { return nil }
func (nopDeployer) Deploy(context.Context) product.Result                          { return product.OK }
func (nopDeployer) Undeploy(context.Context) product.Result                        { return product.OK }
func (nopDeployer) Start(context.Context) product.Result                           { return product.OK }
func (nopDeployer) Stop(context.Context) product.Result                            { return product.OK }

const portalYAML = `
name: web-portal
params:
  port: "8080"
components:
  - name: frontend
    artifact: com.acme:frontend:1.0.0
    procedure:
      - type: copy
  - name: backend
    artifact: com.acme:backend:tar.gz:2.0.0
    procedure:
      - type: copy
`

const agentYAML = `
name: old-agent
components:
  - name: agent
    artifact: com.acme:agent-bin:1.0.0
    procedure:
      - type: copy
`

type fixture struct {
	t        *testing.T
	primary  *testutil.Repo
	products *testutil.Repo
	calls    atomic.Int32
	cacheDir string
	working  string
	portable string
	target   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		primary:  testutil.NewRepo(t),
		products: testutil.NewRepo(t),
		cacheDir: filepath.Join(t.TempDir(), "catalog"),
		working:  filepath.Join(t.TempDir(), "working"),
		target:   t.TempDir(),
	}

	f.primary.Publish("io.provisio:catalog:yaml:1", []byte(`repositories:
  - `+f.products.Root+`
products:
  web-portal:
    coordinate: com.acme:portal
  old-agent:
    coordinate: com.acme:agent
    legacy: true
  next-gen:
    coordinate: com.acme:next
`))

	api := testutil.Dependency{Coordinate: "io.provisio:prov-api:1.4.0", Scope: "provided"}
	f.products.Publish("com.acme:portal:1.0.0", testutil.ProductArchive(t, portalYAML), api)
	f.products.Publish("com.acme:frontend:1.0.0", []byte("frontend-1"),
		testutil.Dep("com.acme:lib:2.0.0"), testutil.Dep("com.acme:util:1.0.0"))
	f.products.Publish("com.acme:lib:2.0.0", []byte("lib-2"))
	f.products.Publish("com.acme:util:1.0.0", []byte("util-1"), testutil.Dep("com.acme:lib:1.0.0"))
	f.products.Publish("com.acme:lib:1.0.0", []byte("lib-1"))
	f.products.Publish("com.acme:backend:tar.gz:2.0.0", []byte("backend-2"))

	tooNew := testutil.Dependency{Coordinate: "io.provisio:prov-api:2.0.0", Scope: "provided"}
	f.products.Publish("com.acme:agent:1.0.0", testutil.ProductArchive(t, agentYAML), tooNew)
	f.products.Publish("com.acme:agent-bin:1.0.0", []byte("agent"))
	f.products.Publish("com.acme:next:1.0.0", testutil.ProductArchive(t, "name: next-gen\ncomponents: []\n"), tooNew)
	return f
}

func (f *fixture) newClient(ref repository.Reference) (repository.Client, error) {
	inner, err := repository.New(ref)
	if err != nil {
		return nil, err
	}
	return &countingClient{Client: inner, calls: &f.calls}, nil
}

func (f *fixture) resolver() *Resolver {
	f.t.Helper()
	primary, err := f.newClient(repository.MustParseReference(f.primary.Root))
	require.NoError(f.t, err)

	cat := catalog.New(catalog.Options{
		Primary:   primary,
		Prefix:    coordinate.Coordinate{Group: "io.provisio", Name: "catalog", Extension: "zip"},
		Dir:       f.cacheDir,
		NewClient: f.newClient,
	})

	base := product.NewRegistry()
	base.MustRegister("copy", func() product.Deployer { return nopDeployer{} })

	r, err := New(Options{
		Catalog:     cat,
		Loader:      loader.New(base, nil),
		WorkingDir:  f.working,
		PortableDir: f.portable,
		TargetDir:   f.target,
	})
	require.NoError(f.t, err)
	return r
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDownload_ResolvesComponentClosures(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()
	res, err := r.Download(context.Background(), "web-portal", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "web-portal", res.Structure.Name)
	assert.False(t, res.Legacy)
	require.Len(t, res.Contexts, 2)

	front, ok := res.Context("frontend")
	require.True(t, ok)
	assert.Equal(t, "web-portal", front.Product)
	assert.Equal(t, "1.0.0", front.Version)
	assert.Equal(t, filepath.Join(f.target, "web-portal"), front.Target)
	assert.Equal(t, map[string]string{"port": "8080"}, front.Params)

	var names []string
	for _, a := range res.Components[coordinate.MustParse("com.acme:frontend:1.0.0")] {
		names = append(names, a.Coordinate.String())
	}
	assert.Equal(t, []string{"com.acme:frontend:1.0.0", "com.acme:lib:2.0.0", "com.acme:util:1.0.0"}, names,
		"nearest declaration of com.acme:lib wins")
	assert.Equal(t, "frontend-1", readFile(t, front.ArtifactFile()))
	assert.Equal(t, "lib-2", readFile(t, front.Files[1]))

	back, ok := res.Context("backend")
	require.True(t, ok)
	assert.Equal(t, []string{repository.LocalPath(r.WorkingDir(), coordinate.MustParse("com.acme:backend:tar.gz:2.0.0"))}, back.Files)

	assert.NoFileExists(t, repository.LocalPath(f.working, coordinate.MustParse("com.acme:lib:1.0.0")))
}

func TestDownload_FilesMatchOrigin(t *testing.T) {
	f := newFixture(t)
	res, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, readFile(t, f.products.Path("com.acme:portal:1.0.0")), readFile(t, res.Product.File))
	for _, arts := range res.Components {
		for _, a := range arts {
			assert.Equal(t, readFile(t, f.products.Path(a.Coordinate.String())), readFile(t, a.File), a.Coordinate.String())
		}
	}
}

// unpublishPOM removes the POM of coord from the products repository.
func (f *fixture) unpublishPOM(coord string) {
	f.t.Helper()
	pom := coordinate.MustParse(coord).POM()
	require.NoError(f.t, os.Remove(filepath.Join(f.products.Root, filepath.FromSlash(pom.Path()))))
}

var withoutPOM = []string{
	"com.acme:portal:1.0.0",
	"com.acme:backend:tar.gz:2.0.0",
	"com.acme:lib:2.0.0",
}

func TestDownload_CachedNeedsNoNetwork(t *testing.T) {
	tests := []struct {
		name        string
		unpublished []string
	}{
		{name: "every POM published"},
		{name: "artifacts published without POM", unpublished: withoutPOM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, coord := range tt.unpublished {
				f.unpublishPOM(coord)
			}

			_, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
			require.NoError(t, err)
			require.Positive(t, f.calls.Load())
			for _, coord := range tt.unpublished {
				assert.NoFileExists(t, repository.LocalPath(f.working, coordinate.MustParse(coord).POM()))
			}

			f.calls.Store(0)
			res, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
			require.NoError(t, err)
			assert.Len(t, res.Contexts, 2)
			assert.Zero(t, f.calls.Load(), "a cached product must not touch any repository")
		})
	}
}

func TestDownload_StagingRemoved(t *testing.T) {
	f := newFixture(t)
	_, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
	require.NoError(t, err)

	_, err = f.resolver().Download(context.Background(), "web-portal", "9.9.9")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(f.working, stagingDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_RecordsVersion(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()
	_, err := r.Download(context.Background(), "web-portal", "1.0.0")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(f.working, filepath.FromSlash(coordinate.MustParse("com.acme:portal:1.0.0").MetadataPath())))

	done, err := r.opts.Catalog.IsDownloaded(context.Background(), "web-portal", "1.0.0")
	require.NoError(t, err)
	assert.True(t, done)

	refs, err := r.opts.Catalog.Repositories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r.WorkingDir(), refs[len(refs)-1].URL, "working repository is the last lookup source")
}

func TestDownload_NotFound(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()

	_, err := r.Download(context.Background(), "no-such-product", "1.0.0")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)

	_, err = r.Download(context.Background(), "web-portal", "3.0.0")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)

	_, err = r.Download(context.Background(), "web-portal", "")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestDownload_MissingDependencyIsNotFound(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.products.Path("com.acme:util:1.0.0")))

	_, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
	assert.NoFileExists(t, repository.LocalPath(f.working, coordinate.MustParse("com.acme:portal:1.0.0").POM()),
		"an incomplete closure never installs the product POM")
}

func TestDownload_IncompatibleAPI(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()

	_, err := r.Download(context.Background(), "next-gen", "1.0.0")
	assert.ErrorIs(t, err, oerrors.ErrIncompatibleAPIVersion)

	res, err := r.Download(context.Background(), "old-agent", "1.0.0")
	require.NoError(t, err, "legacy products skip the API check")
	assert.True(t, res.Legacy)
}

func TestDownload_PortableTier(t *testing.T) {
	tests := []struct {
		name        string
		unpublished []string
	}{
		{name: "every POM published"},
		{name: "artifacts published without POM", unpublished: withoutPOM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, coord := range tt.unpublished {
				f.unpublishPOM(coord)
			}
			f.portable = filepath.Join(t.TempDir(), "portable")
			_, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
			require.NoError(t, err)
			assert.FileExists(t, repository.LocalPath(f.portable, coordinate.MustParse("com.acme:lib:2.0.0")))

			f.working = filepath.Join(t.TempDir(), "other-working")
			f.calls.Store(0)
			res, err := f.resolver().Download(context.Background(), "web-portal", "1.0.0")
			require.NoError(t, err)

			assert.Zero(t, f.calls.Load(), "a product complete in the portable tier needs no network")
			assert.Equal(t, "lib-2", readFile(t, repository.LocalPath(f.working, coordinate.MustParse("com.acme:lib:2.0.0"))))
			assert.Equal(t, readFile(t, f.products.Path("com.acme:portal:1.0.0")), readFile(t, res.Product.File))
		})
	}
}

func TestDownload_InstallsPOMBeforeArtifact(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()

	staging, cleanup, err := r.newStaging()
	require.NoError(t, err)
	defer cleanup()
	fe := newFetcher(r, staging)

	c := coordinate.MustParse("com.acme:util:1.0.0")
	_, err = fe.fetch(context.Background(), c)
	require.NoError(t, err)
	pom, err := fe.pom(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, pom.Runtime(), 1)

	// The artifact move fails; its POM is already in place.
	require.NoError(t, os.MkdirAll(repository.LocalPath(f.working, c), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repository.LocalPath(f.working, c), "keep"), nil, 0o644))
	require.Error(t, fe.install([]coordinate.Coordinate{c.POM(), c}))
	assert.FileExists(t, repository.LocalPath(f.working, c.POM()))
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	r := f.resolver()
	c := coordinate.MustParse("com.acme:lib:1.0.0")

	path, err := r.Get(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "lib-1", readFile(t, path))
	assert.FileExists(t, repository.LocalPath(f.working, c.POM()))

	f.calls.Store(0)
	again, err := r.Get(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Zero(t, f.calls.Load())

	_, err = r.Get(context.Background(), coordinate.MustParse("com.acme:lib:7.0.0"))
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}
