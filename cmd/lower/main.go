// Package main provides the lower CLI: it builds a small convolutional
// network with the compute package and times it in compiled and immediate
// mode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lower",
		Short:         "Lower tensor graphs onto CPU kernel primitives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newVersionCmd(), newRunCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lower %s\n", version)
		},
	}
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Build and execute the demo network",
		Args:  cobra.NoArgs,
		RunE:  RunHandler,
	}
	runCmd.Flags().String("mode", "", "Execution mode: compiled, immediate or both (default from LOWER_MODE, or both)")
	runCmd.Flags().Bool("bf16", false, "Run convolutions in bfloat16")
	runCmd.Flags().Int("iterations", 10, "Executions per compiled context")
	runCmd.Flags().Int("size", 32, "Input height and width")
	runCmd.Flags().Uint64("seed", 1, "Seed for the synthetic weights and input")
	return runCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
