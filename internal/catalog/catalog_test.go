package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/repository"
	"github.com/provisio/prov/internal/testutil"
)

// countingClient records calls made to the wrapped client.
type countingClient struct {
	repository.Client
	lists   atomic.Int32
	fetches atomic.Int32
}

func (c *countingClient) ListVersions(ctx context.Context, prefix coordinate.Coordinate) (*repository.Metadata, error) {
	c.lists.Add(1)
	return c.Client.ListVersions(ctx, prefix)
}

func (c *countingClient) Fetch(ctx context.Context, co coordinate.Coordinate) (io.ReadCloser, error) {
	c.fetches.Add(1)
	return c.Client.Fetch(ctx, co)
}

func (c *countingClient) calls() int32 {
	return c.lists.Load() + c.fetches.Load()
}

var catalogPrefix = coordinate.Coordinate{Group: "io.provisio", Name: "catalog", Extension: "zip"}

func catalogYAML(repos ...string) string {
	doc := "repositories:\n"
	for _, r := range repos {
		doc += "  - " + r + "\n"
	}
	doc += `products:
  web-portal:
    coordinate: com.acme:portal
    description: Customer portal
  old-agent:
    coordinate: com.acme:agent
    legacy: true
`
	return doc
}

type fixture struct {
	primary  *testutil.Repo
	products *testutil.Repo
	client   *countingClient
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		primary:  testutil.NewRepo(t),
		products: testutil.NewRepo(t),
		dir:      filepath.Join(t.TempDir(), "catalog"),
	}
	f.primary.Publish("io.provisio:catalog:yaml:1", []byte(catalogYAML(f.products.Root)))
	f.products.Publish("com.acme:portal:1.0.0", []byte("p1"))
	f.products.Publish("com.acme:portal:1.1.0", []byte("p11"))

	inner, err := repository.New(repository.MustParseReference(f.primary.Root))
	require.NoError(t, err)
	f.client = &countingClient{Client: inner}
	return f
}

func (f *fixture) catalog() *Catalog {
	return New(Options{Primary: f.client, Prefix: catalogPrefix, Dir: f.dir})
}

func TestCatalog_FirstLoadDownloads(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog()
	assert.Equal(t, Unloaded, cat.State())

	require.NoError(t, cat.Load(context.Background()))

	assert.Equal(t, Fresh, cat.State())
	assert.FileExists(t, filepath.Join(f.dir, "catalog.yaml"))

	doc, err := cat.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"old-agent", "web-portal"}, doc.Names())
}

func TestCatalog_SecondProcessReadsCache(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.catalog().Load(context.Background()))
	before := f.client.calls()

	cat := f.catalog()
	require.NoError(t, cat.Load(context.Background()))

	assert.Equal(t, Stale, cat.State())
	assert.Equal(t, before, f.client.calls(), "cached catalog needs no network")
}

func TestCatalog_RefreshOverwritesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.catalog().Load(ctx))

	updated := catalogYAML(f.products.Root) + "  billing:\n    coordinate: com.acme:billing\n"
	f.primary.Publish("io.provisio:catalog:yaml:2", []byte(updated))

	cat := f.catalog()
	require.NoError(t, cat.Load(ctx))
	_, _, err := cat.Product(ctx, "billing")
	assert.ErrorIs(t, err, oerrors.ErrNotFound, "stale cache does not know the new product")

	require.NoError(t, cat.Refresh(ctx))
	assert.Equal(t, Fresh, cat.State())
	_, prefix, err := cat.Product(ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, "com.acme:billing", prefix.Prefix())
}

func TestCatalog_MissingPrimaryIsConfigurationMissing(t *testing.T) {
	cat := New(Options{Prefix: catalogPrefix, Dir: t.TempDir()})

	err := cat.Load(context.Background())
	assert.ErrorIs(t, err, oerrors.ErrConfigurationMissing)
	assert.Equal(t, Unloaded, cat.State())
}

func TestCatalog_UnreachablePrimaryIsConfigurationMissing(t *testing.T) {
	inner, err := repository.New(repository.MustParseReference(t.TempDir()))
	require.NoError(t, err)
	cat := New(Options{Primary: inner, Prefix: catalogPrefix, Dir: t.TempDir()})

	err = cat.Load(context.Background())
	assert.ErrorIs(t, err, oerrors.ErrConfigurationMissing)
}

func TestCatalog_Product(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog()
	ctx := context.Background()

	info, prefix, err := cat.Product(ctx, "old-agent")
	require.NoError(t, err)
	assert.True(t, info.Legacy)
	assert.Equal(t, "com.acme:agent", prefix.Prefix())

	_, _, err = cat.Product(ctx, "unknown")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestCatalog_RepositoriesOrderAndAppendLocal(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog()
	ctx := context.Background()

	local := repository.MustParseReference(t.TempDir())
	cat.AppendLocal(local)
	cat.AppendLocal(local)

	refs, err := cat.Repositories(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, f.products.Root, refs[0].URL)
	assert.Equal(t, local, refs[1], "local cache is last")
}

func TestCatalog_RepositoriesDefaultToPrimary(t *testing.T) {
	f := newFixture(t)
	f.primary.Publish("io.provisio:catalog:yaml:2", []byte("products:\n  x:\n    coordinate: a:b\n"))

	refs, err := f.catalog().Repositories(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, f.primary.Root, refs[0].URL)
}

func TestCatalog_Versions(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog()
	ctx := context.Background()

	versions, err := cat.Versions(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)
	assert.FileExists(t, filepath.Join(f.dir, "versions.yaml"))

	f.products.Publish("com.acme:portal:1.2.0", []byte("p12"))

	cached, err := f.catalog().Versions(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, cached, "served from cache")

	refreshed, err := f.catalog().RefreshVersions(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0", "1.2.0"}, refreshed)
}

func TestCatalog_AddVersionKeepsOrder(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog()
	ctx := context.Background()

	_, err := cat.Versions(ctx, "web-portal")
	require.NoError(t, err)
	require.NoError(t, cat.AddVersion(ctx, "web-portal", "1.0.5"))
	require.NoError(t, cat.AddVersion(ctx, "web-portal", "1.10.0"))

	versions, err := f.catalog().Versions(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.0.5", "1.1.0", "1.10.0"}, versions)
}

func TestCatalog_RefreshVersionsDoesNotRefetchCatalog(t *testing.T) {
	f := newFixture(t)
	cat := f.catalog()
	ctx := context.Background()
	require.NoError(t, cat.Load(ctx))
	fetches := f.client.fetches.Load()

	_, err := cat.RefreshVersions(ctx, "web-portal")
	require.NoError(t, err)

	assert.Equal(t, fetches, f.client.fetches.Load())
	assert.Equal(t, Fresh, cat.State())
}

func TestCatalog_VersionsOfUnknownProductIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog().Versions(context.Background(), "ghost")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)

	_, err = f.catalog().Versions(context.Background(), "old-agent")
	assert.ErrorIs(t, err, oerrors.ErrNotFound, "listed product with no published versions")
}

func TestCatalog_MarkDownloaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog()

	require.NoError(t, cat.MarkDownloaded(ctx, "web-portal", "1.0.0"))
	require.NoError(t, cat.MarkDownloaded(ctx, "web-portal", "1.0.0"))

	reloaded := f.catalog()
	ok, err := reloaded.IsDownloaded(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := reloaded.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-portal-1.0.0"}, doc.DownloadedProducts)

	require.NoError(t, reloaded.Refresh(ctx))
	ok, err = reloaded.IsDownloaded(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok, "refresh keeps download tracking")
}

func TestCatalog_CorruptCacheRedownloads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "catalog.yaml"), []byte("products: [oops"), 0o644))

	cat := f.catalog()
	require.NoError(t, cat.Load(context.Background()))
	assert.Equal(t, Fresh, cat.State())
}

func TestParseDocument_RejectsUnknownFields(t *testing.T) {
	_, err := ParseDocument([]byte("repositories: []\nprodcts: {}\n"))
	assert.Error(t, err)

	doc, err := ParseDocument([]byte(`{"repositories": ["/srv/r"], "products": {"a": {"coordinate": "g:a"}}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, doc.Names())
}
