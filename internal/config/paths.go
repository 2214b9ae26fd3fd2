package config

import (
	"os"
	"path/filepath"
)

// Paths contains standard filesystem paths for prov.
type Paths struct {
	// ConfigFile is the path to the config file (~/.prov/config.yaml).
	ConfigFile string

	// CacheDir is the path to the catalog cache directory (~/.prov/cache).
	CacheDir string

	// WorkDir is the working folder (~/.prov/work).
	WorkDir string

	// HomeDir is the prov home directory (~/.prov).
	HomeDir string
}

// DefaultPaths returns the default paths for prov.
func DefaultPaths() (*Paths, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	provHome := filepath.Join(homeDir, ".prov")

	return &Paths{
		ConfigFile: filepath.Join(provHome, "config.yaml"),
		CacheDir:   filepath.Join(provHome, "cache"),
		WorkDir:    filepath.Join(provHome, "work"),
		HomeDir:    provHome,
	}, nil
}

// GetConfigFile returns the config file path.
// If PROV_CONFIG is set, it takes precedence.
func GetConfigFile() (string, error) {
	if envPath := os.Getenv("PROV_CONFIG"); envPath != "" {
		return envPath, nil
	}

	paths, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	return paths.ConfigFile, nil
}

// EnsureDir creates a directory (after ~ expansion) if it doesn't exist.
func EnsureDir(path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	return expanded, os.MkdirAll(expanded, 0o755)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) == 0 {
		return path, nil
	}

	if path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if len(path) == 1 {
		return homeDir, nil
	}

	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(homeDir, path[2:]), nil
	}

	// ~username is not supported
	return path, nil
}
