package main

import (
	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/pipeline/errs"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run quality gate only",
	Long: `verify resumes a run that has already been integrated: it dispatches
the quality_gate phase exactly once and stops, regardless of whether the
gate passed, demanded a fix pass, or failed outright. Run it again after
a fix pass to re-check convergence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := requireExistingState()
		if err != nil {
			return err
		}
		if st.CurrentPhase != pipeline.PhaseQualityGate {
			return errs.Configuration("verify requires a run parked at quality_gate; run `integrate` first", nil)
		}
		d, err := buildDriver(st)
		if err != nil {
			return err
		}
		runErr := d.RunSinglePhase(cmd.Context(), pipeline.PhaseQualityGate)
		return report(cmd, d, runErr)
	},
}
