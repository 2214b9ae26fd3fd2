package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/engine"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/product"
)

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <name[:version]>",
		Short: "Install a product",
		Long: `Install a product version, downloading it and its component
dependencies first. Without a version the latest known version is used.

If another version is installed, only the components that differ are
undeployed and deployed.

Examples:
  # Install a specific version
  prov install web-portal:1.2.0

  # Install the latest known version
  prov install web-portal`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductChange(cmd, args[0], "install", (*engine.Engine).Install)
		},
	}
}

// NewUpgradeCmd creates the upgrade command.
func NewUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <name[:version]>",
		Short: "Upgrade an installed product",
		Long: `Move an installed product to another version. Without a version the
product's versions are refreshed from the repositories and the latest is used.

Examples:
  prov upgrade web-portal
  prov upgrade web-portal:1.3.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductChange(cmd, args[0], "upgrade", (*engine.Engine).Upgrade)
		},
	}
}

// NewUninstallCmd creates the uninstall command.
func NewUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <name>",
		Aliases: []string{"remove"},
		Short:   "Uninstall a product",
		Long: `Undeploy every component of an installed product, last declared
first, and forget it. Products it requires stay installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _, err := parseProductRef(args[0])
			if err != nil {
				return exitWith(err)
			}
			return runProductChange(cmd, name, "uninstall",
				func(e *engine.Engine, ctx context.Context, name, _ string) (product.Result, error) {
					return e.Uninstall(ctx, name)
				})
		},
	}
}

type changeFunc func(e *engine.Engine, ctx context.Context, name, version string) (product.Result, error)

func runProductChange(cmd *cobra.Command, ref, verb string, fn changeFunc) error {
	name, ver, err := parseProductRef(ref)
	if err != nil {
		return exitWith(err)
	}
	e, err := newEngine()
	if err != nil {
		return err
	}

	result, err := fn(e, cmd.Context(), name, ver)
	return reportResult(name, verb, result, err)
}

// reportResult logs the outcome of a product change. NEED_REBOOT is a
// success with a warning.
func reportResult(name, verb string, result product.Result, err error) error {
	log := output.ProductLogger(name)
	if err != nil {
		log.Error(verb+" failed", "result", result)
		return exitWith(err)
	}

	switch result {
	case product.AlreadyInstalled:
		log.Info(output.FormatCheckmark("already installed, nothing to do"))
	case product.NeedReboot:
		log.Warn(output.FormatWarning(verb + " complete, reboot required"))
	default:
		log.Info(output.FormatCheckmark(verb + " complete"))
	}
	return nil
}
