package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for prov configuration.
const envPrefix = "PROV"

// Loader handles loading and merging configuration from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("repository", "PROV_REPOSITORY")
	_ = v.BindEnv("username", "PROV_USERNAME")
	_ = v.BindEnv("password", "PROV_PASSWORD")
	_ = v.BindEnv("workDir", "PROV_WORKDIR")
	_ = v.BindEnv("cacheDir", "PROV_CACHE_DIR")
	_ = v.BindEnv("portableRepository", "PROV_PORTABLE_REPOSITORY")
	_ = v.BindEnv("deploy.target", "PROV_TARGET")

	return &Loader{v: v}
}

// Load loads configuration from the given file path.
// If configFile is empty, it uses the default config file path.
// Environment variables take precedence over file values.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		var err error
		configFile, err = GetConfigFile()
		if err != nil {
			return nil, fmt.Errorf("getting config file path: %w", err)
		}
	}

	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	l.v.SetConfigFile(expandedPath)
	l.v.SetConfigType("yaml")

	// A missing file is fine: defaults and env vars still apply.
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration and applies defaults.
func (l *Loader) LoadWithDefaults(configFile string) (*Config, error) {
	cfg, err := l.Load(configFile)
	if err != nil {
		return nil, err
	}

	return cfg.WithDefaults(), nil
}

// ConfigFileExists checks if the config file exists.
func ConfigFileExists(configFile string) (bool, error) {
	if configFile == "" {
		var err error
		configFile, err = GetConfigFile()
		if err != nil {
			return false, err
		}
	}

	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(expandedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Resolve loads the configuration file chosen by precedence, applies defaults,
// expands paths and resolves the primary repository.
func Resolve(configFlag, repositoryFlag string) (*ProvConfig, error) {
	path, err := ResolveConfigPath(configFlag)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	cfg, err := NewLoader().LoadWithDefaults(path.Value)
	if err != nil {
		return nil, err
	}

	repo := ResolveRepository(repositoryFlag, cfg.Repository)

	for _, p := range []*string{&cfg.WorkDir, &cfg.CacheDir, &cfg.PortableRepository, &cfg.Deploy.Target} {
		if *p, err = ExpandPath(*p); err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
	}

	LogResolvedValues([]ResolvedValue{
		path.Resolved(),
		repo.Resolved(),
		{Key: "workDir", Value: cfg.WorkDir},
		{Key: "cacheDir", Value: cfg.CacheDir},
	})

	return &ProvConfig{
		Config:           cfg,
		Repository:       repo.Value,
		RepositorySource: repo.Source,
		ConfigPath:       path.Value,
	}, nil
}
