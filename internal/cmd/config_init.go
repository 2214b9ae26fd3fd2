package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/config"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
)

var configInitForce bool

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration",
		Long: `Write a commented default configuration file.

The file is written to the resolved config path:
  --config flag > PROV_CONFIG env > ~/.prov/config.yaml

Examples:
  # Initialize configuration
  prov config init

  # Overwrite existing configuration
  prov config init --force`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	cmd.Flags().BoolVarP(&configInitForce, "force", "f", false,
		"Overwrite existing configuration")

	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	pathResult, err := config.ResolveConfigPath(GetConfigPath())
	if err != nil {
		return exitWith(oerrors.Wrap(oerrors.ErrNotFound, "could not determine home directory"))
	}
	configPath, err := config.ExpandPath(pathResult.Value)
	if err != nil {
		return exitWith(err)
	}

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return exitWith(&oerrors.DetailError{
			Type:     "validation failed",
			Message:  "configuration already exists",
			Location: configPath,
			Hint:     "Use --force to overwrite existing configuration.",
			Cause:    oerrors.ErrValidation,
		})
	}

	data, err := config.RenderTemplate(config.DefaultConfig())
	if err != nil {
		return exitWith(fmt.Errorf("rendering configuration: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return exitWith(fmt.Errorf("creating %s: %w", filepath.Dir(configPath), err))
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return exitWith(fmt.Errorf("writing %s: %w", configPath, err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration initialized at "+configPath)
	output.Debug("config written", "path", configPath, "source", pathResult.Source)
	return nil
}
