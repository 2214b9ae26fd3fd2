package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/output"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <name[:version]>",
		Short: "Show the components a deployment would change",
		Long: `Compare the installed version of a product with a target version and
show which components would be undeployed and deployed. Nothing runs.

A component that keeps its name but changes artifact is shown as a
replacement with the differences of its definition.

Examples:
  prov plan web-portal:2.0.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ver, err := parseProductRef(args[0])
			if err != nil {
				return exitWith(err)
			}
			e, err := newEngine()
			if err != nil {
				return err
			}

			plan, err := e.Plan(cmd.Context(), name, ver)
			if err != nil {
				return exitWith(err)
			}

			from, to := plan.From, plan.To
			if from == "" {
				from = "(none)"
			}
			if to == "" {
				to = "(none)"
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s -> %s\n",
				output.StyleNoun.Render(plan.Product), from, to)

			if !plan.IsEmpty() {
				rendered, err := plan.Render(output.IsTTY())
				if err != nil {
					return exitWith(err)
				}
				fmt.Fprintln(w, rendered)
			}
			fmt.Fprintln(w, output.StyleSummary.Render(plan.Summary()))
			return nil
		},
	}
}
