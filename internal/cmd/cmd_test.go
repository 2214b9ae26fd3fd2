package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate points HOME and the prov environment at a temp folder and resets
// the command globals.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PROV_CONFIG", "")
	t.Setenv("PROV_REPOSITORY", "")

	configFlag, repositoryFlag = "", ""
	provConfig, configErr = nil, nil
	configInitForce = false
	listOutputFlag, listInstalledFlag = "table", false
	t.Cleanup(func() {
		provConfig, configErr = nil, nil
	})
	return home
}

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeConfig initializes a config file under home with workDir and
// target inside it.
func writeConfig(t *testing.T, home string) string {
	t.Helper()
	path := filepath.Join(home, "prov.yaml")
	_, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	return path
}
