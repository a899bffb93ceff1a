package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <prd-file>",
	Short: "Run the entire pipeline end to end",
	Long: `run drives a fresh (or resumed, if output-dir already holds a run)
pipeline from init all the way to complete or failed: decomposition,
contract registration, the builder fan-out, integration, the quality
gate, and as many fix passes as convergence requires.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToPhase(cmd.Context(), cmd, args[0], "")
	},
}
