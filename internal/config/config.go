// Package config provides configuration loading and management.
package config

import "time"

// CatalogConfig locates the product catalog in the primary repository.
type CatalogConfig struct {
	// Coordinate is the group:name prefix of the catalog artifact.
	// Default: io.provisio:catalog
	Coordinate string `mapstructure:"coordinate" json:"coordinate,omitempty"`
}

// DeployConfig contains deployment settings handed to component deployers.
type DeployConfig struct {
	// Target is the root folder components are deployed into.
	// Env: PROV_TARGET, Default: ~/.prov/target
	Target string `mapstructure:"target" json:"target,omitempty"`

	// RebootExitCode is the process exit code a command step uses to signal
	// that a reboot is required.
	RebootExitCode int `mapstructure:"rebootExitCode" json:"rebootExitCode,omitempty"`

	// History is the number of change entries kept per deployed product.
	History int `mapstructure:"history" json:"history,omitempty"`
}

// HTTPConfig tunes the http repository transport.
type HTTPConfig struct {
	// Timeout is the per-request timeout, as a Go duration string.
	Timeout string `mapstructure:"timeout" json:"timeout,omitempty"`

	// Retries is the number of attempts per request.
	Retries int `mapstructure:"retries" json:"retries,omitempty"`
}

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `mapstructure:"timestamps" json:"timestamps,omitempty"`
}

// Config represents the prov configuration.
// Loaded from ~/.prov/config.yaml, validated against an embedded CUE schema.
type Config struct {
	// Repository is the primary repository URL. The catalog is read from it.
	// Env: PROV_REPOSITORY
	Repository string `mapstructure:"repository" json:"repository,omitempty"`

	// Username and Password authenticate against http repositories whose
	// URL carries no credentials.
	// Env: PROV_USERNAME, PROV_PASSWORD
	Username string `mapstructure:"username" json:"username,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`

	// WorkDir holds the working repository, deployed state and lock file.
	// Env: PROV_WORKDIR, Default: ~/.prov/work
	WorkDir string `mapstructure:"workDir" json:"workDir,omitempty"`

	// CacheDir holds the cached catalog documents.
	// Env: PROV_CACHE_DIR, Default: ~/.prov/cache
	CacheDir string `mapstructure:"cacheDir" json:"cacheDir,omitempty"`

	// PortableRepository is an optional shared repository folder consulted
	// before any remote repository.
	// Env: PROV_PORTABLE_REPOSITORY
	PortableRepository string `mapstructure:"portableRepository" json:"portableRepository,omitempty"`

	Catalog CatalogConfig `mapstructure:"catalog" json:"catalog,omitempty"`
	Deploy  DeployConfig  `mapstructure:"deploy" json:"deploy,omitempty"`
	HTTP    HTTPConfig    `mapstructure:"http" json:"http,omitempty"`
	Log     LogConfig     `mapstructure:"log" json:"log,omitempty"`
}

// Defaults.
const (
	DefaultCatalogCoordinate = "io.provisio:catalog"
	DefaultRebootExitCode    = 3010
	DefaultHistory           = 10
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultHTTPRetries       = 3
)

// DefaultConfig returns a Config with all default values populated.
// Used by `prov config init` to generate the initial config file.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:  "~/.prov/work",
		CacheDir: "~/.prov/cache",
		Catalog: CatalogConfig{
			Coordinate: DefaultCatalogCoordinate,
		},
		Deploy: DeployConfig{
			Target:         "~/.prov/target",
			RebootExitCode: DefaultRebootExitCode,
			History:        DefaultHistory,
		},
		HTTP: HTTPConfig{
			Timeout: DefaultHTTPTimeout.String(),
			Retries: DefaultHTTPRetries,
		},
	}
}

// WithDefaults returns a copy of c with every unset field filled from DefaultConfig.
func (c *Config) WithDefaults() *Config {
	out := *c
	def := DefaultConfig()

	if out.WorkDir == "" {
		out.WorkDir = def.WorkDir
	}
	if out.CacheDir == "" {
		out.CacheDir = def.CacheDir
	}
	if out.Catalog.Coordinate == "" {
		out.Catalog.Coordinate = def.Catalog.Coordinate
	}
	if out.Deploy.Target == "" {
		out.Deploy.Target = def.Deploy.Target
	}
	if out.Deploy.RebootExitCode == 0 {
		out.Deploy.RebootExitCode = def.Deploy.RebootExitCode
	}
	if out.Deploy.History == 0 {
		out.Deploy.History = def.Deploy.History
	}
	if out.HTTP.Timeout == "" {
		out.HTTP.Timeout = def.HTTP.Timeout
	}
	if out.HTTP.Retries == 0 {
		out.HTTP.Retries = def.HTTP.Retries
	}
	return &out
}

// HTTPTimeout parses HTTP.Timeout, falling back to the default.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil || d <= 0 {
		return DefaultHTTPTimeout
	}
	return d
}

// ResolvedValue records one configuration value and where it came from.
type ResolvedValue struct {
	Key      string
	Value    any
	Source   string
	Shadowed map[string]any
}

// ProvConfig is the fully resolved configuration handed to commands.
type ProvConfig struct {
	// Config contains the loaded configuration with defaults applied and
	// paths expanded.
	Config *Config

	// Repository is the resolved primary repository URL after precedence.
	Repository string

	// RepositorySource indicates where the repository URL came from.
	RepositorySource ConfigSource

	// ConfigPath is the file the configuration was loaded from.
	ConfigPath string
}
