// Command pipelinectl drives a pipeline run through decomposition,
// parallel service builders, container integration, and a layered
// quality gate, persisting its state after every transition so a
// killed or interrupted run can always be resumed.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
