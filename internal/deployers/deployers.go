// Package deployers provides the built-in component deployer types every
// product can reference from its procedures.
package deployers

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/product"
)

// Built-in deployer type names.
const (
	TypeCopy    = "copy"
	TypeExtract = "extract"
	TypeCommand = "command"
)

// Option configures the built-in deployer types.
type Option func(*options)

type options struct {
	rebootExitCode int
}

// WithRebootExitCode sets the default exit code a command step uses to
// report that a reboot is required.
func WithRebootExitCode(code int) Option {
	return func(o *options) {
		if code != 0 {
			o.rebootExitCode = code
		}
	}
}

type builtin struct {
	name    string
	factory product.Factory
}

func builtins(opts []Option) []builtin {
	o := options{rebootExitCode: DefaultRebootExitCode}
	for _, opt := range opts {
		opt(&o)
	}
	return []builtin{
		{TypeCopy, func() product.Deployer { return &copyDeployer{} }},
		{TypeExtract, func() product.Deployer { return &extractDeployer{} }},
		{TypeCommand, func() product.Deployer { return &commandDeployer{reboot: o.rebootExitCode} }},
	}
}

// Register adds the built-in deployer types to reg.
func Register(reg *product.Registry, opts ...Option) error {
	for _, b := range builtins(opts) {
		if err := reg.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding only the built-in deployer types.
func NewRegistry(opts ...Option) *product.Registry {
	reg := product.NewRegistry()
	for _, b := range builtins(opts) {
		reg.MustRegister(b.name, b.factory)
	}
	return reg
}

// base carries the component context shared by the built-in deployers.
type base struct {
	dc  product.Context
	log *log.Logger
}

func (b *base) init(kind string, dc product.Context) error {
	if dc.Target == "" {
		return fmt.Errorf("%s: component %s has no target folder", kind, dc.Component)
	}
	b.dc = dc
	b.log = output.ProductLogger(dc.Product).With("component", dc.Component, "deployer", kind)
	return nil
}

func (b *base) fail(op string, err error) product.Result {
	b.log.Error(op+" failed", "err", err)
	return product.Failed
}

// resolveTarget returns rel joined to the component target folder. rel must
// stay inside the target.
func resolveTarget(target, rel string) (string, error) {
	if rel == "" || rel == "." {
		return target, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("path %q is outside the target folder", rel)
	}
	return filepath.Join(target, filepath.FromSlash(rel)), nil
}

func boolParam(params map[string]string, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parameter %s: %q is not a boolean", key, v)
	}
	return b, nil
}
