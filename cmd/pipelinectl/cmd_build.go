package main

import (
	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run builder phase only (requires prior plan)",
	Long: `build resumes a run that has already been through plan — it approves
the service map when architect.auto_approve is set, registers contracts, and runs
the per-service builder fan-out, then parks the run at builders_complete
without integrating or running the quality gate.`,
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
		runErr := d.RunUntil(cmd.Context(), pipeline.PhaseBuildersComplete)
		return report(cmd, d, runErr)
	},
}
