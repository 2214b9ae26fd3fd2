package loader

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

const (
	// ManifestPath is the archive entry holding the product manifest.
	ManifestPath = "META-INF/MANIFEST.MF"

	// EntryPointAttribute names the manifest attribute selecting the entry point.
	EntryPointAttribute = "Product-Entry-Point"

	metaDir = "META-INF/"

	// maxMetaEntry bounds how much of a single META-INF entry is read.
	maxMetaEntry = 4 << 20
)

// Archive is the META-INF view of a product artifact, read into memory.
// The underlying file is closed once OpenArchive returns.
type Archive struct {
	Path     string
	Manifest Manifest
	files    map[string][]byte
}

// OpenArchive reads the META-INF entries and manifest of the zip at path.
func OpenArchive(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening product archive %s: %w", path, err)
	}
	defer zr.Close()

	a := &Archive{Path: path, files: make(map[string][]byte)}
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, metaDir) || f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", f.Name, path, err)
		}
		a.files[f.Name] = data
	}

	raw, ok := a.files[ManifestPath]
	if !ok {
		return nil, fmt.Errorf("product archive %s has no %s", path, ManifestPath)
	}
	if a.Manifest, err = ParseManifest(raw); err != nil {
		return nil, fmt.Errorf("parsing manifest of %s: %w", path, err)
	}
	return a, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxMetaEntry+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMetaEntry {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxMetaEntry)
	}
	return data, nil
}

// ReadFile returns a META-INF entry. Missing entries wrap fs.ErrNotExist.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	data, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, a.Path, fs.ErrNotExist)
	}
	return data, nil
}

// Manifest holds the main attributes of a manifest file.
type Manifest map[string]string

// EntryPoint returns the declared entry point id.
func (m Manifest) EntryPoint() string {
	return m[EntryPointAttribute]
}

// ParseManifest parses the main section of a manifest. A line starting with
// a single space continues the previous value. Parsing stops at the first
// blank line.
func ParseManifest(data []byte) (Manifest, error) {
	m := make(Manifest)
	var last string

	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") {
			if last == "" {
				return nil, fmt.Errorf("line %d: continuation without attribute", n)
			}
			m[last] += line[1:]
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: expected 'Name: value'", n)
		}
		last = key
		m[key] = strings.TrimPrefix(value, " ")
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
