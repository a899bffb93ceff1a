package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/pipeline/driver"
	"github.com/pipelineforge/orchestrator/internal/pipeline/shutdown"
)

// openOrCreateState loads a persisted state document from outputDir if
// one exists, otherwise creates a fresh one from prdPath. A freshly
// created run gets a new run id; a resumed one keeps its own.
func openOrCreateState(prdPath string) (*pipeline.PipelineState, error) {
	if st, err := driver.Load(outputDir); err == nil {
		return st, nil
	} else if _, ok := err.(*driver.ErrNewerSchema); ok {
		return nil, err
	}
	if prdPath == "" {
		return nil, fmt.Errorf("no existing run at %s and no PRD path given to start one", outputDir)
	}
	return pipeline.NewPipelineState(uuid.New().String(), prdPath, configPath), nil
}

// requireExistingState loads a persisted state document, failing if
// none exists. Used by the single-phase verbs that document themselves
// as requiring a prior phase to have already run.
func requireExistingState() (*pipeline.PipelineState, error) {
	return driver.Load(outputDir)
}

// buildDriver wires a Driver for st against the loaded config, with a
// shutdown coordinator that persists state on the first interrupt
// signal.
func buildDriver(st *pipeline.PipelineState) (*driver.Driver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	audit := newAuditLogger(outputDir)
	rec := newMetricsRecorder()

	var d *driver.Driver
	coordinator := shutdown.New(func(reason string) {
		if d != nil {
			_ = d.Persist()
		}
	})
	coordinator.Start()

	collaborators := buildCollaborators(cfg, outputDir, coordinator)
	d = driver.New(st, cfg, outputDir, collaborators, coordinator, audit, rec)
	return d, nil
}

// report prints the run's summary. It exits the process with status 1
// when the driver returned an error or the run ended failed or
// interrupted; otherwise (complete, or parked at a target phase) it
// returns nil.
func report(cmd *cobra.Command, d *driver.Driver, runErr error) error {
	if runErr != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s stopped: %v\n", d.State.RunID, runErr)
		fmt.Fprintf(cmd.OutOrStdout(), "state persisted at %s/%s\n", outputDir, driver.StatePath)
		os.Exit(1)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: phase=%s\n", d.State.RunID, d.State.CurrentPhase)
	fmt.Fprintf(cmd.OutOrStdout(), "state persisted at %s/%s\n", outputDir, driver.StatePath)

	if d.State.CurrentPhase == pipeline.PhaseFailed {
		fmt.Fprintf(cmd.OutOrStdout(), "failed: %s\n", d.State.InterruptReason)
		os.Exit(1)
	}
	if d.State.Interrupted {
		fmt.Fprintf(cmd.OutOrStdout(), "interrupted: %s\n", d.State.InterruptReason)
		os.Exit(1)
	}
	return nil
}

func runToPhase(ctx context.Context, cmd *cobra.Command, prdPath string, target pipeline.Phase) error {
	st, err := openOrCreateState(prdPath)
	if err != nil {
		return err
	}
	d, err := buildDriver(st)
	if err != nil {
		return err
	}
	var runErr error
	if target == "" {
		runErr = d.Run(ctx)
	} else {
		runErr = d.RunUntil(ctx, target)
	}
	return report(cmd, d, runErr)
}
