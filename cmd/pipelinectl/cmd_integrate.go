package main

import (
	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Run integration only",
	Long: `integrate resumes a run that has already completed the builder phase:
it deploys every successfully built service via the container runtime,
waits for health, runs the post-deploy test suites, and parks the run at
quality_gate without running the gate itself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := requireExistingState()
		if err != nil {
			return err
		}
		d, err := buildDriver(st)
		if err != nil {
			return err
		}
		runErr := d.RunUntil(cmd.Context(), pipeline.PhaseQualityGate)
		return report(cmd, d, runErr)
	},
}
