package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sigs.k8s.io/yaml"

	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/repository"
)

// StatePath returns the deployed-state document path under workDir.
func StatePath(workDir string) string {
	return filepath.Join(workDir, "state", "deployed.yaml")
}

// Store reads and writes the deployed-state document. One Store is shared
// by every orchestration call of a process; each method is a complete
// read-modify-write under the store mutex.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns the store of workDir.
func NewStore(workDir string) *Store {
	return &Store{path: StatePath(workDir)}
}

// Path returns the state document path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current state. A missing document is an empty state.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading deployed state: %w", err)
	}
	st, err := Unmarshal(data)
	if err != nil {
		return nil, &oerrors.DetailError{
			Type:     "invalid deployed state",
			Message:  err.Error(),
			Location: s.path,
			Hint:     "Restore the file from a backup or remove it to forget every installed product.",
			Cause:    oerrors.ErrValidation,
		}
	}
	return st, nil
}

func (s *Store) save(st *State) error {
	data, err := Marshal(st)
	if err != nil {
		return err
	}
	if err := repository.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing deployed state: %w", err)
	}
	output.Debug("wrote deployed state", "path", s.path, "products", len(st.Products))
	return nil
}

// Get returns the record of name, or nil when the product is not installed.
func (s *Store) Get(name string) (*Record, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	return st.Products[name], nil
}

// Put replaces the record of rec.Name.
func (s *Store) Put(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.Products[rec.Name] = rec
	return s.save(st)
}

// Delete removes the record of name. Deleting an absent record is a no-op.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := st.Products[name]; !ok {
		return nil
	}
	delete(st.Products, name)
	return s.save(st)
}

// List returns every record, sorted by product name.
func (s *Store) List() ([]*Record, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(st.Products))
	for _, r := range st.Products {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Marshal serializes a state document.
func Marshal(st *State) ([]byte, error) {
	st.Kind = stateKind
	st.APIVersion = stateAPIVersion
	data, err := yaml.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("serializing deployed state: %w", err)
	}
	return data, nil
}

// Unmarshal parses a state document.
func Unmarshal(data []byte) (*State, error) {
	st := NewState()
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing deployed state: %w", err)
	}
	if st.Kind != stateKind {
		return nil, fmt.Errorf("unexpected kind %q (want %s)", st.Kind, stateKind)
	}
	if st.APIVersion != stateAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion %q (want %s)", st.APIVersion, stateAPIVersion)
	}
	if st.Products == nil {
		st.Products = make(map[string]*Record)
	}
	for name, r := range st.Products {
		if r == nil {
			delete(st.Products, name)
			continue
		}
		if r.Name == "" {
			r.Name = name
		}
		if r.Changes == nil {
			r.Changes = make(map[string]*ChangeEntry)
		}
	}
	return st, nil
}
