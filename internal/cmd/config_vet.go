package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/config"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vet",
		Short: "Validate configuration",
		Long: `Validate the prov configuration file.

Checks performed:
  1. Config file exists at resolved path
  2. Config file is valid YAML
  3. Values match the configuration schema

The config path is resolved using precedence:
  --config flag > PROV_CONFIG env > ~/.prov/config.yaml

Examples:
  # Validate default configuration
  prov config vet

  # Validate custom config path
  prov config vet --config /path/to/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runConfigVet,
	}
}

func runConfigVet(cmd *cobra.Command, args []string) error {
	pathResult, err := config.ResolveConfigPath(GetConfigPath())
	if err != nil {
		return exitWith(oerrors.Wrap(oerrors.ErrNotFound, "could not resolve config path"))
	}
	configPath, err := config.ExpandPath(pathResult.Value)
	if err != nil {
		return exitWith(err)
	}

	output.Debug("validating config",
		"path", configPath,
		"source", pathResult.Source,
	)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return exitWith(oerrors.NewNotFoundError(
			"configuration file not found",
			configPath,
			"Run 'prov config init' to create default configuration",
		))
	}

	v, err := config.NewValidator()
	if err != nil {
		return exitWith(err)
	}
	if err := v.ValidateFile(configPath); err != nil {
		var verrs config.ValidationErrors
		if oerrors.As(err, &verrs) {
			return exitWith(oerrors.NewValidationError(verrs.Error(), configPath, ""))
		}
		return exitWith(fmt.Errorf("%w: %w", oerrors.ErrValidation, err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid: "+configPath)
	return nil
}
