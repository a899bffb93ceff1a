package main

import (
	"github.com/spf13/cobra"
)

// Version is the pipelinectl release tag, overridden at build time via
// -ldflags "-X main.Version=...".
var Version = "dev"

var (
	configPath string
	outputDir  string
	depthFlag  string

	rootCmd = &cobra.Command{
		Use:     "pipelinectl",
		Short:   "Orchestrates a PRD into decomposed services, builds, and a layered quality gate",
		Version: Version,
		Long: `pipelinectl decomposes a product requirements document into services,
spawns a per-service builder subprocess for each one, integrates the
resulting containers, runs a four-layer quality gate, and iterates a
bounded fix loop until the build converges or a budget/attempt limit is
reached. Every phase transition is persisted atomically, so a killed or
interrupted run can always be resumed from the same output directory.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pipeline.config.yaml", "Path to the pipeline config file")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "./pipeline-run", "Run output directory")
	rootCmd.PersistentFlags().StringVar(&depthFlag, "depth", "", "Override the configured builder depth (standard, thorough, quick)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resumeCmd)
}
