package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/provisio/prov/internal/errors"
)

const portalDescriptor = `
name: portal
version: 2.1.0
requires:
  - product: base
    version: 1.0.0
params:
  port: "8080"
deployers:
  web:
    type: copy
    params:
      into: www
components:
  - name: frontend
    artifact: com.acme:frontend:2.1.0
    procedure:
      - type: web
  - name: backend
    artifact: com.acme:backend:tar.gz:2.0.0
    procedure:
      - type: extract
      - type: command
        params:
          deploy: ./install.sh
`

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(portalDescriptor), "product.yaml")
	require.NoError(t, err)

	assert.Equal(t, "portal", d.Name)
	assert.Equal(t, "2.1.0", d.Version)
	assert.Equal(t, []Requirement{{Product: "base", Version: "1.0.0"}}, d.Requires)
	assert.Equal(t, map[string]string{"port": "8080"}, d.Params)
	assert.Equal(t, Step{Type: "copy", Params: map[string]string{"into": "www"}}, d.Deployers["web"])

	require.Len(t, d.Components, 2)
	assert.Equal(t, "frontend", d.Components[0].Name)
	assert.Equal(t, "com.acme:frontend:2.1.0", d.Components[0].Artifact.String())
	assert.Equal(t, "tar.gz", d.Components[1].Artifact.Extension)
	assert.Equal(t, Procedure{{Type: "extract"}, {Type: "command", Params: map[string]string{"deploy": "./install.sh"}}},
		d.Components[1].Procedure)

	coords := d.Coordinates()
	require.Len(t, coords, 2)
	assert.Equal(t, "backend", coords[1].Name)

	c, ok := d.Component("backend")
	assert.True(t, ok)
	assert.Equal(t, "backend", c.Name)
	_, ok = d.Component("nope")
	assert.False(t, ok)
}

func TestParseDescriptor_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "not yaml",
			yaml:    "name: [",
			wantMsg: "not valid YAML",
		},
		{
			name:    "missing components",
			yaml:    "name: portal\n",
			wantMsg: "components",
		},
		{
			name:    "unknown field",
			yaml:    "name: portal\ncolour: blue\ncomponents: []\n",
			wantMsg: "colour",
		},
		{
			name:    "numeric param",
			yaml:    "name: portal\nparams:\n  port: 8080\ncomponents: []\n",
			wantMsg: "params.port",
		},
		{
			name:    "bad artifact",
			yaml:    "name: portal\ncomponents:\n  - name: a\n    artifact: justaname\n    procedure: []\n",
			wantMsg: "artifact",
		},
		{
			name: "duplicate component",
			yaml: "name: portal\ncomponents:\n" +
				"  - name: a\n    artifact: g:a:1\n    procedure: []\n" +
				"  - name: a\n    artifact: g:b:1\n    procedure: []\n",
			wantMsg: `component "a" declared twice`,
		},
		{
			name: "shared artifact",
			yaml: "name: portal\ncomponents:\n" +
				"  - name: a\n    artifact: g:a:1\n    procedure: []\n" +
				"  - name: b\n    artifact: g:a:1\n    procedure: []\n",
			wantMsg: "share artifact",
		},
		{
			name:    "alias of alias",
			yaml:    "name: portal\ndeployers:\n  a:\n    type: b\n  b:\n    type: copy\ncomponents: []\n",
			wantMsg: "product-local deployer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(tt.yaml), "product.yaml")
			require.Error(t, err)
			assert.ErrorIs(t, err, oerrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestContext_ArtifactFile(t *testing.T) {
	assert.Empty(t, Context{}.ArtifactFile())
	assert.Equal(t, "/a.zip", Context{Files: []string{"/a.zip", "/b.jar"}}.ArtifactFile())
}
