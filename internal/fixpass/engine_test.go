package fixpass

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestRunPass_FullCycleWritesInstructionsAndConverges(t *testing.T) {
	outputDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "order-service"), 0o755))

	before := []pipeline.ScanViolation{
		{Code: "JWT001", File: "auth.go", Line: 1, Service: "order-service", Severity: pipeline.SeverityError, Message: "hardcoded secret"},
	}
	after := []pipeline.ScanViolation{} // APPLY fixed everything

	calls := 0
	scan := func(ctx context.Context) ([]pipeline.ScanViolation, error) {
		calls++
		if calls == 1 {
			return before, nil
		}
		return after, nil
	}
	applied := []string{}
	apply := func(ctx context.Context, serviceID string) error {
		applied = append(applied, serviceID)
		return nil
	}

	deps := Deps{
		ScanFn:     scan,
		ApplyFn:    apply,
		ContextFor: func(ctx context.Context, serviceID string) string { return "ctx for " + serviceID },
		OutputDir:  outputDir,
	}

	result, decision := RunPass(context.Background(), deps, 1, nil, ConvergenceInputs{PassNumber: 1, MaxPasses: 5, InitialWeighted: 0.4})

	require.Equal(t, []string{"DISCOVER", "CLASSIFY", "GENERATE", "APPLY", "VERIFY", "REGRESS"}, result.StepsCompleted)
	require.Equal(t, 1, result.FixesGenerated)
	require.Equal(t, 1, result.FixesApplied)
	require.Equal(t, []string{"order-service"}, applied)
	require.Equal(t, 0, result.RegressionCount)
	require.Equal(t, 1.0, result.Effectiveness)
	require.True(t, decision.Stop, "no P0/P1 remain after the fix so the pass should converge")

	instructions, err := os.ReadFile(filepath.Join(outputDir, "order-service", "FIX_INSTRUCTIONS.md"))
	require.NoError(t, err)
	require.Contains(t, string(instructions), "JWT001")
	require.Contains(t, string(instructions), "ctx for order-service")
}

func TestRunPass_ScanFailureAbortsWithStop(t *testing.T) {
	deps := Deps{
		ScanFn: func(ctx context.Context) ([]pipeline.ScanViolation, error) {
			return nil, os.ErrPermission
		},
		OutputDir: t.TempDir(),
	}
	result, decision := RunPass(context.Background(), deps, 1, nil, ConvergenceInputs{MaxPasses: 5})
	require.True(t, decision.Stop)
	require.Contains(t, result.Status, "error")
	require.Empty(t, result.StepsCompleted) // DISCOVER itself failed, so it never completed
}

func TestRunPass_DetectsRegressionWhenNewViolationsAppear(t *testing.T) {
	outputDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "order-service"), 0o755))

	before := []pipeline.ScanViolation{
		{Code: "JWT001", File: "auth.go", Line: 1, Service: "order-service", Severity: pipeline.SeverityError},
	}
	// APPLY introduces a brand-new violation instead of fixing the old one.
	after := []pipeline.ScanViolation{
		{Code: "JWT001", File: "auth.go", Line: 1, Service: "order-service", Severity: pipeline.SeverityError},
		{Code: "CORS002", File: "cors.go", Line: 3, Service: "order-service", Severity: pipeline.SeverityWarning},
	}

	calls := 0
	deps := Deps{
		ScanFn: func(ctx context.Context) ([]pipeline.ScanViolation, error) {
			calls++
			if calls == 1 {
				return before, nil
			}
			return after, nil
		},
		ApplyFn:    func(ctx context.Context, serviceID string) error { return nil },
		ContextFor: func(ctx context.Context, serviceID string) string { return "" },
		OutputDir:  outputDir,
	}

	result, _ := RunPass(context.Background(), deps, 1, nil, ConvergenceInputs{MaxPasses: 5, InitialWeighted: 0.4})
	require.Equal(t, 1, result.RegressionCount)
	require.Equal(t, -1.0, result.Effectiveness, "after_total grew past before_total, so effectiveness goes negative")
}

func TestEffectiveness_NoDiffYieldsZeroNotError(t *testing.T) {
	snap := pipeline.ViolationSnapshot{
		{Code: "A"}: {Code: "A"},
	}
	require.Equal(t, 0.0, effectiveness(snap, snap))
}

func TestEffectiveness_EmptyBeforeYieldsZero(t *testing.T) {
	require.Equal(t, 0.0, effectiveness(pipeline.ViolationSnapshot{}, pipeline.ViolationSnapshot{}))
}

func TestCountNew_CountsOnlyKeysAbsentBefore(t *testing.T) {
	before := pipeline.ViolationSnapshot{{Code: "A"}: {Code: "A"}}
	after := pipeline.ViolationSnapshot{{Code: "A"}: {Code: "A"}, {Code: "B"}: {Code: "B"}}
	require.Equal(t, 1, countNew(before, after))
}

func TestServicesIn_DeduplicatesAndSkipsEmptyService(t *testing.T) {
	snap := pipeline.ViolationSnapshot{
		{Code: "A"}: {Code: "A", Service: "user-service"},
		{Code: "B"}: {Code: "B", Service: "user-service"},
		{Code: "C"}: {Code: "C", Service: ""},
	}
	services := servicesIn(snap)
	require.ElementsMatch(t, []string{"user-service"}, services)
}
