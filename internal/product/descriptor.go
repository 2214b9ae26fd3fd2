package product

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	oerrors "github.com/provisio/prov/internal/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// Descriptor is the document a product ships at META-INF/product.yaml.
type Descriptor struct {
	Structure `yaml:",inline"`

	// Params are passed to every component's deployment context.
	Params map[string]string `yaml:"params,omitempty"`

	// Deployers declares product-local deployer types: a name bound to a
	// registered type with preset parameters.
	Deployers map[string]Step `yaml:"deployers,omitempty"`
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
)

func productSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		data, err := schemaFS.ReadFile("schema.cue")
		if err != nil {
			schemaErr = fmt.Errorf("reading embedded schema: %w", err)
			return
		}
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileBytes(data)
		if v.Err() != nil {
			schemaErr = fmt.Errorf("compiling schema: %w", v.Err())
			return
		}
		schemaVal = v.LookupPath(cue.ParsePath("#Product"))
	})
	return schemaCtx, schemaVal, schemaErr
}

// ParseDescriptor validates data against the descriptor schema and decodes it.
// location names the source in error messages.
func ParseDescriptor(data []byte, location string) (*Descriptor, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, oerrors.NewValidationError(fmt.Sprintf("descriptor is not valid YAML: %v", err), location, "")
	}
	if err := validateSchema(raw, location); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		return nil, oerrors.NewValidationError(fmt.Sprintf("decoding descriptor: %v", err), location, "")
	}

	if err := d.check(); err != nil {
		return nil, oerrors.NewValidationError(err.Error(), location, "")
	}
	return &d, nil
}

// schemaMu guards the shared CUE runtime, which is not safe for concurrent use.
var schemaMu sync.Mutex

func validateSchema(raw any, location string) error {
	ctx, schema, err := productSchema()
	if err != nil {
		return err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return oerrors.NewValidationError(fmt.Sprintf("descriptor cannot be encoded: %v", err), location, "")
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	value := ctx.CompileBytes(data)
	if value.Err() != nil {
		return oerrors.NewValidationError(value.Err().Error(), location, "")
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		var msgs []string
		for _, e := range cueerrors.Errors(err) {
			path := e.Path()
			if len(path) > 0 && path[0] == "#Product" {
				path = path[1:]
			}
			format, args := e.Msg()
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(path, "."), fmt.Sprintf(format, args...)))
		}
		return oerrors.NewValidationError(
			"descriptor does not match schema:\n    "+strings.Join(msgs, "\n    "),
			location,
			"Parameter values must be strings; quote numbers and booleans.",
		)
	}
	return nil
}

func (d *Descriptor) check() error {
	names := make(map[string]bool)
	artifacts := make(map[string]string)
	for _, c := range d.Components {
		if names[c.Name] {
			return fmt.Errorf("component %q declared twice", c.Name)
		}
		names[c.Name] = true

		key := c.Artifact.String()
		if other, ok := artifacts[key]; ok {
			return fmt.Errorf("components %q and %q share artifact %s", other, c.Name, key)
		}
		artifacts[key] = c.Name
	}
	for alias, step := range d.Deployers {
		if _, ok := d.Deployers[step.Type]; ok {
			return fmt.Errorf("deployer %q refers to product-local deployer %q", alias, step.Type)
		}
	}
	return nil
}
