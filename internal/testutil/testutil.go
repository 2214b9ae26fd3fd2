// Package testutil provides repository and archive fixtures for tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/provisio/prov/internal/coordinate"
)

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// Dependency is one POM dependency of a published fixture artifact.
type Dependency struct {
	Coordinate string
	Scope      string
	Optional   bool
}

// Dep declares a runtime dependency on coord.
func Dep(coord string) Dependency {
	return Dependency{Coordinate: coord}
}

// Repo is a local repository folder populated by tests.
type Repo struct {
	Root     string
	t        *testing.T
	versions map[string][]string
}

// NewRepo creates an empty repository in a temp directory.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	return &Repo{Root: t.TempDir(), t: t, versions: make(map[string][]string)}
}

// Publish writes the artifact, its POM and the updated metadata.
func (r *Repo) Publish(coord string, content []byte, deps ...Dependency) coordinate.Coordinate {
	r.t.Helper()
	c := coordinate.MustParse(coord)

	WriteFile(r.t, r.Root, filepath.FromSlash(c.Path()), string(content))
	WriteFile(r.t, r.Root, filepath.FromSlash(c.POM().Path()), POM(c, deps...))

	key := c.Prefix()
	r.versions[key] = append(r.versions[key], c.Version)
	WriteFile(r.t, r.Root, filepath.FromSlash(c.MetadataPath()), Metadata(c, r.versions[key]...))
	return c
}

// Path returns the on-disk path of coord.
func (r *Repo) Path(coord string) string {
	return filepath.Join(r.Root, filepath.FromSlash(coordinate.MustParse(coord).Path()))
}

// POM renders a POM document for c.
func POM(c coordinate.Coordinate, deps ...Dependency) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<project>\n  <groupId>%s</groupId>\n  <artifactId>%s</artifactId>\n  <version>%s</version>\n  <packaging>%s</packaging>\n",
		c.Group, c.Name, c.Version, c.Extension)
	if len(deps) > 0 {
		b.WriteString("  <dependencies>\n")
		for _, d := range deps {
			parts := strings.Split(d.Coordinate, ":")
			dc := coordinate.Coordinate{Group: parts[0], Name: parts[1], Version: parts[len(parts)-1]}
			if len(parts) > 3 {
				dc.Extension = parts[2]
			}
			if len(parts) > 4 {
				dc.Classifier = parts[3]
			}
			fmt.Fprintf(&b, "    <dependency>\n      <groupId>%s</groupId>\n      <artifactId>%s</artifactId>\n      <version>%s</version>\n",
				dc.Group, dc.Name, dc.Version)
			if dc.Extension != "" {
				fmt.Fprintf(&b, "      <type>%s</type>\n", dc.Extension)
			}
			if dc.Classifier != "" {
				fmt.Fprintf(&b, "      <classifier>%s</classifier>\n", dc.Classifier)
			}
			if d.Scope != "" {
				fmt.Fprintf(&b, "      <scope>%s</scope>\n", d.Scope)
			}
			if d.Optional {
				b.WriteString("      <optional>true</optional>\n")
			}
			b.WriteString("    </dependency>\n")
		}
		b.WriteString("  </dependencies>\n")
	}
	b.WriteString("</project>\n")
	return b.String()
}

// Metadata renders a version listing for c's prefix. The last version is
// the release.
func Metadata(c coordinate.Coordinate, versions ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<metadata>\n  <groupId>%s</groupId>\n  <artifactId>%s</artifactId>\n  <versioning>\n",
		c.Group, c.Name)
	if n := len(versions); n > 0 {
		fmt.Fprintf(&b, "    <latest>%s</latest>\n    <release>%s</release>\n", versions[n-1], versions[n-1])
	}
	b.WriteString("    <versions>\n")
	for _, v := range versions {
		fmt.Fprintf(&b, "      <version>%s</version>\n", v)
	}
	b.WriteString("    </versions>\n  </versioning>\n</metadata>\n")
	return b.String()
}

// Zip builds an in-memory zip archive from name → content.
func Zip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

// ProductArchive builds a product artifact whose manifest declares the
// built-in descriptor entry point and whose descriptor is productYAML.
func ProductArchive(t *testing.T, productYAML string) []byte {
	t.Helper()
	return Zip(t, map[string]string{
		"META-INF/MANIFEST.MF":  "Manifest-Version: 1.0\nProduct-Entry-Point: descriptor\n",
		"META-INF/product.yaml": productYAML,
	})
}

// TarGz builds an in-memory tar.gz archive of regular files.
func TarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(files[name])), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(files[name])); err != nil {
			t.Fatalf("writing tar entry %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buf.Bytes()
}
