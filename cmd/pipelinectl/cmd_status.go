package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/pipeline/driver"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print current state of a run directory",
	Long: `status loads the state persisted at output-dir and prints a summary
of its current phase, cost, builder statuses, and quality attempts. It
never fails the process: a missing or unreadable run is reported as
"no run" rather than as an error, since checking status is a read-only
diagnostic, not a phase transition.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		st, err := driver.Load(outputDir)
		if err != nil {
			fmt.Fprintf(out, "no run at %s: %v\n", outputDir, err)
			return nil
		}

		fmt.Fprintf(out, "run:              %s\n", st.RunID)
		fmt.Fprintf(out, "phase:            %s\n", st.CurrentPhase)
		fmt.Fprintf(out, "started:          %s\n", st.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
		fmt.Fprintf(out, "updated:          %s\n", st.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		fmt.Fprintf(out, "total cost:       %.4f\n", st.TotalCost)
		if st.BudgetLimit != nil {
			fmt.Fprintf(out, "budget limit:     %.4f\n", *st.BudgetLimit)
		}
		fmt.Fprintf(out, "quality attempts: %d\n", st.QualityAttempts)
		fmt.Fprintf(out, "fix passes:       %d\n", len(st.FixPassResults))

		if len(st.Services) > 0 {
			fmt.Fprintf(out, "services:\n")
			for id, status := range st.BuilderStatuses {
				fmt.Fprintf(out, "  %-20s %s\n", id, status)
			}
		}

		if st.Interrupted {
			fmt.Fprintf(out, "interrupted:      %s\n", st.InterruptReason)
		}
		if st.CurrentPhase == pipeline.PhaseFailed {
			fmt.Fprintf(out, "failure reason:   %s\n", st.InterruptReason)
		}
		return nil
	},
}
