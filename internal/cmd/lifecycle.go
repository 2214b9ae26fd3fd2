package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/provisio/prov/internal/engine"
	"github.com/provisio/prov/internal/product"
)

// NewStartCmd creates the start command.
func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start an installed product",
		Long:  `Run the start operation of every installed component, in declared order.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, args[0], "start", (*engine.Engine).Start)
		},
	}
}

// NewStopCmd creates the stop command.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop an installed product",
		Long:  `Run the stop operation of every installed component, last declared first.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, args[0], "stop", (*engine.Engine).Stop)
		},
	}
}

func runLifecycle(cmd *cobra.Command, ref, verb string, fn func(*engine.Engine, context.Context, string) (product.Result, error)) error {
	return runProductChange(cmd, ref, verb,
		func(e *engine.Engine, ctx context.Context, name, _ string) (product.Result, error) {
			return fn(e, ctx, name)
		})
}
