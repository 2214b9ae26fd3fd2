package catalog

import (
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/provisio/prov/internal/repository"
)

// ProductInfo describes one catalog product.
type ProductInfo struct {
	// Coordinate is the group:name prefix of the product artifact.
	Coordinate string `json:"coordinate"`

	// Legacy products predate the deployment API dependency; their declared
	// API version is not checked.
	Legacy bool `json:"legacy,omitempty"`

	// Description is shown by list.
	Description string `json:"description,omitempty"`
}

// Document is the catalog document.
type Document struct {
	Repositories       []string               `json:"repositories"`
	Products           map[string]ProductInfo `json:"products"`
	DownloadedProducts []string               `json:"downloadedProducts,omitempty"`
}

// ParseDocument decodes a catalog document in YAML or JSON form.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog document: %w", err)
	}
	if doc.Products == nil {
		doc.Products = make(map[string]ProductInfo)
	}
	return &doc, nil
}

// Names returns the product names, sorted.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Products))
	for name := range d.Products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// downloadKey is the downloadedProducts entry of name at version.
func downloadKey(name, version string) string {
	return name + "-" + version
}

// Versions maps product name to its known versions, oldest first.
type Versions map[string][]string

func readYAML(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return repository.WriteFileAtomic(path, data)
}
