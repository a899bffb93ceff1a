package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a run from its persisted state",
	Long: `resume loads the state persisted at output-dir and drives it from
whatever phase it was left at all the way to complete or failed. Use it
after an interrupted or budget-stopped run; it is equivalent to run but
takes no PRD path since the run already exists.`,
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
		runErr := d.Run(cmd.Context())
		return report(cmd, d, runErr)
	},
}
