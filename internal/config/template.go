package config

import (
	"bytes"
	"strconv"

	"gopkg.in/yaml.v3"
)

const templateHeader = `prov configuration.
Values here are overridden by PROV_* environment variables and by flags.`

// RenderTemplate renders cfg as a commented YAML document for `prov config init`.
func RenderTemplate(cfg *Config) ([]byte, error) {
	doc := mapping(
		field("repository", str(cfg.Repository),
			"Primary repository URL (file://, a local path, or http(s)://).\nThe product catalog is read from it."),
		field("workDir", str(cfg.WorkDir),
			"Working folder: cached artifacts, deployed state and the lock file."),
		field("cacheDir", str(cfg.CacheDir), "Catalog cache."),
		field("portableRepository", str(cfg.PortableRepository),
			"Optional shared repository consulted before any remote repository."),
		field("catalog", mapping(
			field("coordinate", str(cfg.Catalog.Coordinate), "group:name of the catalog artifact."),
		), ""),
		field("deploy", mapping(
			field("target", str(cfg.Deploy.Target), "Folder products are deployed into, one sub-folder per product."),
			field("rebootExitCode", integer(cfg.Deploy.RebootExitCode), "Exit code a command step uses to request a reboot."),
			field("history", integer(cfg.Deploy.History), "Change entries kept per product."),
		), ""),
		field("http", mapping(
			field("timeout", str(cfg.HTTP.Timeout), ""),
			field("retries", integer(cfg.HTTP.Retries), ""),
		), ""),
	)
	doc.HeadComment = templateHeader

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type pair struct {
	key, value *yaml.Node
}

func field(key string, value *yaml.Node, comment string) pair {
	return pair{
		key:   &yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: comment},
		value: value,
	}
}

func mapping(pairs ...pair) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range pairs {
		n.Content = append(n.Content, p.key, p.value)
	}
	return n
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func integer(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}
