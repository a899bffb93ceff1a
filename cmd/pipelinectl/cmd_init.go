package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config into an empty run directory",
	Long: `init scaffolds a new run: it creates --output-dir if needed and writes
a default pipeline.config.yaml at --config. It refuses to overwrite an
existing config, so re-running init against a run already in progress
is always safe.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}
	fmt.Printf("wrote default config to %s\n", configPath)
	fmt.Printf("run directory ready at %s\n", outputDir)
	return nil
}
