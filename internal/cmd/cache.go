package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/output"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage downloaded files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			for _, p := range e.CachePaths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the catalog cache and downloaded artifacts",
		Long: `Remove the catalog cache and the working repository. Installed
products are not affected; artifacts are downloaded again when needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			if err := e.ClearCache(); err != nil {
				return exitWith(err)
			}
			output.Info(output.FormatCheckmark("cache cleared"))
			return nil
		},
	})

	return cmd
}
