package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show prov version information and the deployment API version it serves.
Products declaring another MAJOR.MINOR API version are refused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return nil
		},
	}
}
