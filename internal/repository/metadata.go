package repository

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/provisio/prov/internal/coordinate"
	"github.com/provisio/prov/internal/version"
)

// lastUpdatedLayout is the timestamp layout used in metadata files.
const lastUpdatedLayout = "20060102150405"

// Metadata is the per-artifact version listing stored at
// group/as/path/name/maven-metadata.xml.
type Metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning lists the known versions, oldest first.
type Versioning struct {
	Latest      string   `xml:"latest,omitempty"`
	Release     string   `xml:"release,omitempty"`
	Versions    []string `xml:"versions>version"`
	LastUpdated string   `xml:"lastUpdated,omitempty"`
}

// ParseMetadata decodes a metadata document. A document without any version
// is malformed.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	var m Metadata
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if len(m.Versioning.Versions) == 0 && m.Versioning.Release == "" && m.Versioning.Latest == "" {
		return nil, fmt.Errorf("metadata for %s:%s lists no versions", m.GroupID, m.ArtifactID)
	}
	return &m, nil
}

// Versions returns the listed versions, oldest first. The release and latest
// markers are included when the version list omits them.
func (m *Metadata) Versions() []string {
	out := slices.Clone(m.Versioning.Versions)
	for _, v := range []string{m.Versioning.Release, m.Versioning.Latest} {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	version.Sort(out)
	return out
}

// Has reports whether v is listed.
func (m *Metadata) Has(v string) bool {
	return slices.Contains(m.Versions(), v)
}

// Release returns the current release version: the release marker, else the
// latest marker, else the newest listed version.
func (m *Metadata) Release() string {
	if m.Versioning.Release != "" {
		return m.Versioning.Release
	}
	if m.Versioning.Latest != "" {
		return m.Versioning.Latest
	}
	if n := len(m.Versioning.Versions); n > 0 {
		return m.Versioning.Versions[n-1]
	}
	return ""
}

// Add records v as the newest version. Unstable versions move the latest
// marker only.
func (m *Metadata) Add(v string, now time.Time) {
	if !slices.Contains(m.Versioning.Versions, v) {
		m.Versioning.Versions = append(m.Versioning.Versions, v)
	}
	version.Sort(m.Versioning.Versions)
	for _, known := range m.Versioning.Versions {
		if version.Compare(known, m.Versioning.Latest) > 0 {
			m.Versioning.Latest = known
		}
		if !version.IsUnstable(known) && version.Compare(known, m.Versioning.Release) > 0 {
			m.Versioning.Release = known
		}
	}
	m.Versioning.LastUpdated = now.UTC().Format(lastUpdatedLayout)
}

// Encode writes m as an indented XML document.
func (m *Metadata) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteMetadata merges version c.Version into the metadata file of c's
// prefix under the local repository root. The file is replaced atomically.
func WriteMetadata(root string, c coordinate.Coordinate) error {
	path := filepath.Join(root, filepath.FromSlash(c.MetadataPath()))

	m := &Metadata{GroupID: c.Group, ArtifactID: c.Name}
	if data, err := os.ReadFile(path); err == nil {
		if existing, err := ParseMetadata(bytes.NewReader(data)); err == nil {
			m = existing
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading metadata %s: %w", path, err)
	}

	m.Add(c.Version, time.Now())

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
