package quality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestRunLayer1_AllSucceedPasses(t *testing.T) {
	results := map[string]pipeline.BuilderResult{
		"user-service":  {ServiceID: "user-service", Success: true},
		"order-service": {ServiceID: "order-service", Success: true},
	}
	layer := RunLayer1(results)
	require.Equal(t, pipeline.VerdictPassed, layer.Verdict)
	require.Empty(t, layer.Violations)
	require.Equal(t, 2, layer.TotalChecks)
	require.Equal(t, 2, layer.PassedChecks)
}

func TestRunLayer1_MixedResultsIsPartial(t *testing.T) {
	results := map[string]pipeline.BuilderResult{
		"user-service":  {ServiceID: "user-service", Success: true},
		"order-service": {ServiceID: "order-service", Success: false, Error: "exit 1"},
	}
	layer := RunLayer1(results)
	require.Equal(t, pipeline.VerdictPartial, layer.Verdict)
	require.Len(t, layer.Violations, 1)
	require.Equal(t, "order-service", layer.Violations[0].Service)
}

func TestRunLayer1_AllFailIsFailed(t *testing.T) {
	results := map[string]pipeline.BuilderResult{
		"order-service": {ServiceID: "order-service", Success: false},
	}
	layer := RunLayer1(results)
	require.Equal(t, pipeline.VerdictFailed, layer.Verdict)
}

func TestRunLayer1_NoResultsIsFailed(t *testing.T) {
	layer := RunLayer1(map[string]pipeline.BuilderResult{})
	require.Equal(t, pipeline.VerdictFailed, layer.Verdict)
	require.Equal(t, 0, layer.TotalChecks)
}
