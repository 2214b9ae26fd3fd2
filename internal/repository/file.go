package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/provisio/prov/internal/coordinate"
	"github.com/provisio/prov/internal/version"
)

// fileClient reads a repository on the local filesystem.
type fileClient struct {
	root string
}

func (f *fileClient) Location() string {
	return f.root
}

func (f *fileClient) ListVersions(_ context.Context, prefix coordinate.Coordinate) (*Metadata, error) {
	file, err := os.Open(filepath.Join(f.root, filepath.FromSlash(prefix.MetadataPath())))
	if os.IsNotExist(err) {
		return f.scanVersions(prefix)
	}
	if err != nil {
		return nil, notFound(f.root, prefix, err)
	}
	defer file.Close()

	meta, err := ParseMetadata(file)
	if err != nil {
		return nil, notFound(f.root, prefix, err)
	}
	return meta, nil
}

// scanVersions lists version directories holding a POM, for shared folders
// populated without metadata files.
func (f *fileClient) scanVersions(prefix coordinate.Coordinate) (*Metadata, error) {
	dir := filepath.Join(f.root, filepath.FromSlash(path.Dir(prefix.MetadataPath())))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFound(f.root, prefix, err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pom := prefix.WithVersion(e.Name()).POM()
		if _, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(pom.Path()))); err == nil {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return nil, notFound(f.root, prefix, fmt.Errorf("no versions under %s", dir))
	}
	version.Sort(versions)

	return &Metadata{
		GroupID:    prefix.Group,
		ArtifactID: prefix.Name,
		Versioning: Versioning{Versions: versions},
	}, nil
}

func (f *fileClient) Fetch(_ context.Context, c coordinate.Coordinate) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.root, filepath.FromSlash(c.Path())))
	if err != nil {
		return nil, notFound(f.root, c, err)
	}
	return file, nil
}

// LocalPath returns the on-disk path of c in a local repository rooted at root.
func LocalPath(root string, c coordinate.Coordinate) string {
	return filepath.Join(root, filepath.FromSlash(c.Path()))
}

// Exists reports whether c is present in the local repository rooted at root.
func Exists(root string, c coordinate.Coordinate) bool {
	_, err := os.Stat(LocalPath(root, c))
	return err == nil
}
