package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provisio/prov/internal/config"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/inventory"
	"github.com/provisio/prov/internal/product"
	"github.com/provisio/prov/internal/testutil"
)

const portalV1 = `
name: web-portal
components:
  - name: site
    artifact: com.acme:site:tar.gz:1.0.0
    procedure:
      - type: extract
        params:
          to: site
  - name: tool
    artifact: com.acme:tool:1.0.0
    procedure:
      - type: copy
        params:
          to: bin
`

const portalV2 = `
name: web-portal
components:
  - name: site
    artifact: com.acme:site:tar.gz:1.0.0
    procedure:
      - type: extract
        params:
          to: site
  - name: docs
    artifact: com.acme:docs:1.0.0
    procedure:
      - type: copy
        params:
          to: docs
`

type fixture struct {
	primary  *testutil.Repo
	products *testutil.Repo
	cfg      *config.Config
	target   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	f := &fixture{
		primary:  testutil.NewRepo(t),
		products: testutil.NewRepo(t),
		target:   filepath.Join(home, "target"),
	}
	f.cfg = &config.Config{
		WorkDir:  filepath.Join(home, "work"),
		CacheDir: filepath.Join(home, "cache"),
		Deploy:   config.DeployConfig{Target: f.target},
	}

	f.primary.Publish("io.provisio:catalog:yaml:1", []byte(`repositories:
  - `+f.products.Root+`
products:
  web-portal:
    coordinate: com.acme:portal
    description: Customer portal
`))

	api := testutil.Dependency{Coordinate: "io.provisio:prov-api:1.4.0", Scope: "provided"}
	f.products.Publish("com.acme:portal:1.0.0", testutil.ProductArchive(t, portalV1), api)
	f.products.Publish("com.acme:portal:2.0.0", testutil.ProductArchive(t, portalV2), api)
	f.products.Publish("com.acme:site:tar.gz:1.0.0", testutil.TarGz(t, map[string]string{
		"site-1.0.0/index.html": "<html/>",
	}))
	f.products.Publish("com.acme:tool:1.0.0", []byte("tool"))
	f.products.Publish("com.acme:docs:1.0.0", []byte("docs"))
	return f
}

func (f *fixture) engine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{Config: f.cfg, Repository: f.primary.Root})
	require.NoError(t, err)
	return e
}

func (f *fixture) productDir(parts ...string) string {
	return filepath.Join(append([]string{f.target, "web-portal"}, parts...)...)
}

func TestInstallUpgradeUninstall(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx := context.Background()

	result, err := e.Install(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, product.OK, result)
	assert.FileExists(t, f.productDir("site", "index.html"))
	assert.FileExists(t, f.productDir("bin", "tool-1.0.0.zip"))

	result, err = e.Install(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, product.AlreadyInstalled, result)

	result, err = e.Upgrade(ctx, "web-portal", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, product.OK, result)
	assert.FileExists(t, f.productDir("site", "index.html"))
	assert.NoDirExists(t, f.productDir("bin"))
	assert.FileExists(t, f.productDir("docs", "docs-1.0.0.zip"))

	rec, err := e.Installed("web-portal")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", rec.Version)
	assert.Len(t, rec.Index, 2)

	result, err = e.Uninstall(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, product.OK, result)
	assert.NoDirExists(t, f.productDir("site"))
	assert.NoDirExists(t, f.productDir("docs"))

	_, err = e.Installed("web-portal")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(f.cfg.WorkDir, inventory.LockFile))
}

func TestInstall_LatestVersion(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	_, err := e.Install(context.Background(), "web-portal", "")
	require.NoError(t, err)

	rec, err := e.Installed("web-portal")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", rec.Version)
}

func TestInstall_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	_, err := e.Install(context.Background(), "nope", "1.0.0")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestUpgrade_NotInstalled(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	_, err := e.Upgrade(context.Background(), "web-portal", "2.0.0")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)
}

func TestLockedWorkingFolder(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	lock, err := inventory.AcquireLock(f.cfg.WorkDir)
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	_, err = e.Install(context.Background(), "web-portal", "1.0.0")
	assert.ErrorIs(t, err, oerrors.ErrLocked)
}

func TestNoRepositoryConfigured(t *testing.T) {
	f := newFixture(t)
	e, err := New(Options{Config: f.cfg})
	require.NoError(t, err)

	_, err = e.Install(context.Background(), "web-portal", "1.0.0")
	assert.ErrorIs(t, err, oerrors.ErrConfigurationMissing)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx := context.Background()

	_, err := e.Install(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)

	rows, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "web-portal", rows[0].Name)
	assert.Equal(t, "1.0.0", rows[0].Installed)
	assert.Equal(t, "2.0.0", rows[0].Latest)
	assert.Equal(t, []string{"1.0.0", "2.0.0"}, rows[0].Available)
	assert.NotEmpty(t, rows[0].Changed)
}

func TestPlan(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx := context.Background()

	_, err := e.Install(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)

	plan, err := e.Plan(ctx, "web-portal", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1 to deploy, 1 to undeploy, 1 untouched", plan.Summary())
	assert.FileExists(t, f.productDir("bin", "tool-1.0.0.zip"), "plan changes nothing")
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx := context.Background()

	_, err := e.Start(ctx, "web-portal")
	assert.ErrorIs(t, err, oerrors.ErrNotFound)

	_, err = e.Install(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)

	result, err := e.Start(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, product.OK, result)
	result, err = e.Stop(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, product.OK, result)
}

func TestRefreshAndClearCache(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx := context.Background()

	require.NoError(t, e.Refresh(ctx, ""))
	f.products.Publish("com.acme:portal:3.0.0", testutil.ProductArchive(t, portalV2))
	require.NoError(t, e.Refresh(ctx, "web-portal"))

	rows, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3.0.0", rows[0].Latest)

	_, err = e.Install(ctx, "web-portal", "1.0.0")
	require.NoError(t, err)
	require.NoError(t, e.ClearCache())
	for _, dir := range e.CachePaths() {
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err), dir)
	}

	// Deployed state survives and the archive is fetched again on demand.
	result, err := e.Uninstall(ctx, "web-portal")
	require.NoError(t, err)
	assert.Equal(t, product.OK, result)
}
