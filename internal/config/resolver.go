package config

import (
	"os"

	"github.com/provisio/prov/internal/output"
)

// ConfigSource names where a setting came from.
type ConfigSource string

// Sources in precedence order, highest first.
const (
	SourceFlag    ConfigSource = "flag"
	SourceEnv     ConfigSource = "env"
	SourceConfig  ConfigSource = "config"
	SourceDefault ConfigSource = "default"
)

// Setting is a value chosen by precedence together with the lower-precedence
// values it hid.
type Setting struct {
	Key      string
	Value    string
	Source   ConfigSource
	Shadowed map[ConfigSource]string
}

type layer struct {
	source ConfigSource
	value  string
}

// pick takes the first non-empty layer. Every non-empty layer after it is
// recorded as shadowed.
func pick(key string, layers ...layer) Setting {
	s := Setting{Key: key, Shadowed: make(map[ConfigSource]string)}
	for _, l := range layers {
		switch {
		case l.value == "":
		case s.Source == "":
			s.Value, s.Source = l.value, l.source
		default:
			s.Shadowed[l.source] = l.value
		}
	}
	return s
}

// ResolveRepository picks the primary repository from the --repository flag,
// then PROV_REPOSITORY, then the config file.
func ResolveRepository(flagValue, configValue string) Setting {
	return pick("repository",
		layer{SourceFlag, flagValue},
		layer{SourceEnv, os.Getenv("PROV_REPOSITORY")},
		layer{SourceConfig, configValue},
	)
}

// ResolveConfigPath picks the config file from the --config flag, then
// PROV_CONFIG, then ~/.prov/config.yaml.
func ResolveConfigPath(flagValue string) (Setting, error) {
	paths, err := DefaultPaths()
	if err != nil {
		return Setting{Key: "config"}, err
	}
	return pick("config",
		layer{SourceFlag, flagValue},
		layer{SourceEnv, os.Getenv("PROV_CONFIG")},
		layer{SourceDefault, paths.ConfigFile},
	), nil
}

// Resolved converts s for LogResolvedValues.
func (s Setting) Resolved() ResolvedValue {
	rv := ResolvedValue{Key: s.Key, Value: s.Value, Source: string(s.Source)}
	if len(s.Shadowed) > 0 {
		rv.Shadowed = make(map[string]any, len(s.Shadowed))
		for k, v := range s.Shadowed {
			rv.Shadowed[string(k)] = v
		}
	}
	return rv
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for source, shadowed := range v.Shadowed {
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}
