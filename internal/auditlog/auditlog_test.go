package auditlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestNewNop_AllMethodsAreSafeToCall(t *testing.T) {
	l := NewNop()
	require.NotPanics(t, func() {
		l.Transition("run-1", pipeline.PhaseInit, pipeline.PhaseArchitectRunning, "start")
		l.LayerVerdict("run-1", 1, pipeline.LayerResult{LayerID: 1, Verdict: pipeline.VerdictPassed})
		l.FixPass("run-1", pipeline.FixPassResult{PassNumber: 1}, true, "converged")
		l.Failed("run-1", pipeline.PhaseBuildersRunning, "boom")
		l.Interrupted("run-1", pipeline.PhaseBuildersRunning, "sigterm")
	})
	require.NoError(t, l.Sync())
}

func TestNilLogger_AllMethodsAreSafeToCall(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() {
		l.Transition("run-1", pipeline.PhaseInit, pipeline.PhaseArchitectRunning, "start")
		l.LayerVerdict("run-1", 1, pipeline.LayerResult{})
		l.FixPass("run-1", pipeline.FixPassResult{}, false, "")
		l.Failed("run-1", pipeline.PhaseBuildersRunning, "boom")
		l.Interrupted("run-1", pipeline.PhaseBuildersRunning, "sigterm")
	})
	require.NoError(t, l.Sync())
}

func TestNew_WritesJSONEventsToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := New(path)
	require.NoError(t, err)

	l.Transition("run-1", pipeline.PhaseInit, pipeline.PhaseArchitectRunning, "start")
	l.LayerVerdict("run-1", 1, pipeline.LayerResult{LayerID: 3, Verdict: pipeline.VerdictFailed, Violations: []pipeline.ScanViolation{{}}})
	l.FixPass("run-1", pipeline.FixPassResult{PassNumber: 2, Effectiveness: 0.5}, true, "converged")
	l.Failed("run-1", pipeline.PhaseBuildersRunning, "boom")
	l.Interrupted("run-1", pipeline.PhaseBuildersRunning, "sigterm")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	require.Contains(t, out, "phase_transition")
	require.Contains(t, out, "layer_verdict")
	require.Contains(t, out, "fix_pass")
	require.Contains(t, out, "run_failed")
	require.Contains(t, out, "run_interrupted")
	require.Contains(t, out, `"run_id":"run-1"`)
}
