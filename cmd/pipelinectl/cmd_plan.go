package main

import (
	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan <prd-file>",
	Short: "Run decomposition only, write service map",
	Long: `plan drives the pipeline from init up to architect_review: it
decomposes the PRD into a service map, then parks the run on reaching
architect_review, before that phase runs, so the map is not reviewed or
approved here, no contract is registered and no builder is spawned. Re-running plan against an existing run directory
resumes it rather than starting over.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToPhase(cmd.Context(), cmd, args[0], pipeline.PhaseArchitectReview)
	},
}
