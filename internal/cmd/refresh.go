package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/output"
)

// NewRefreshCmd creates the refresh command.
func NewRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [name]",
		Short: "Refresh the catalog or a product's versions",
		Long: `Download the catalog again from the primary repository. With a product
name, query the repositories for the product's versions instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				n, _, err := parseProductRef(args[0])
				if err != nil {
					return exitWith(err)
				}
				name = n
			}

			e, err := newEngine()
			if err != nil {
				return err
			}

			title := "Refreshing catalog"
			if name != "" {
				title = "Refreshing versions of " + name
			}
			err = output.Spin(cmd.Context(), title, func(ctx context.Context) error {
				return e.Refresh(ctx, name)
			})
			if err != nil {
				return exitWith(err)
			}
			output.Info(output.FormatCheckmark("refreshed"))
			return nil
		},
	}
}
