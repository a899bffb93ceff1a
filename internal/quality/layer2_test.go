package quality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestRunLayer2_AllTestsPassIsPassed(t *testing.T) {
	report := pipeline.IntegrationReport{
		ContractTests:    pipeline.TestTally{Passed: 5, Total: 5},
		IntegrationTests: pipeline.TestTally{Passed: 3, Total: 3},
	}
	layer := RunLayer2(report)
	require.Equal(t, pipeline.VerdictPassed, layer.Verdict)
	require.Equal(t, 8, layer.TotalChecks)
	require.Equal(t, 8, layer.PassedChecks)
}

func TestRunLayer2_PartialOnSomeFailures(t *testing.T) {
	report := pipeline.IntegrationReport{
		ContractTests: pipeline.TestTally{Passed: 4, Total: 5},
	}
	layer := RunLayer2(report)
	require.Equal(t, pipeline.VerdictPartial, layer.Verdict)
}

func TestRunLayer2_BlockingViolationForcesFailed(t *testing.T) {
	report := pipeline.IntegrationReport{
		ContractTests: pipeline.TestTally{Passed: 5, Total: 5},
		Violations: []pipeline.ContractViolation{
			{Code: "CONTRACT001", Severity: pipeline.SeverityError, Message: "schema mismatch"},
		},
	}
	layer := RunLayer2(report)
	require.Equal(t, pipeline.VerdictFailed, layer.Verdict)
	require.Len(t, layer.ContractViolations, 1)
}

func TestRunLayer2_NoTestsIsFailed(t *testing.T) {
	layer := RunLayer2(pipeline.IntegrationReport{})
	require.Equal(t, pipeline.VerdictFailed, layer.Verdict)
}
