/*
Package auditlog is the structured event trail for quality-gate and
fix-pass decisions: every layer verdict, every fix-pass convergence
decision, every transition into `failed`. It is the one place this
repo reaches for go.uber.org/zap rather than the plain command output
the CLI surface prints, because these events are a genuinely structured
record meant to be grepped/ingested later, not an operator-facing
progress message.
*/
package auditlog

import (
	"go.uber.org/zap"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// Logger wraps a *zap.Logger scoped to one run.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger writing structured JSON to the given path, one
// line per event, alongside the run's other artifacts.
func New(path string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// NewNop returns a Logger that discards everything, for tests and for
// commands (like `status`) that never mutate a run.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}

// Transition records a phase transition.
func (l *Logger) Transition(runID string, from, to pipeline.Phase, trigger string) {
	if l == nil {
		return
	}
	l.z.Info("phase_transition",
		zap.String("run_id", runID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("trigger", trigger),
	)
}

// LayerVerdict records one quality-gate layer's outcome.
func (l *Logger) LayerVerdict(runID string, attempt int, layer pipeline.LayerResult) {
	if l == nil {
		return
	}
	l.z.Info("layer_verdict",
		zap.String("run_id", runID),
		zap.Int("quality_attempt", attempt),
		zap.Int("layer_id", layer.LayerID),
		zap.String("verdict", string(layer.Verdict)),
		zap.Int("violation_count", len(layer.Violations)),
	)
}

// FixPass records a completed fix-pass cycle and its convergence decision.
func (l *Logger) FixPass(runID string, result pipeline.FixPassResult, stopped bool, reason string) {
	if l == nil {
		return
	}
	l.z.Info("fix_pass",
		zap.String("run_id", runID),
		zap.Int("pass_number", result.PassNumber),
		zap.Float64("effectiveness", result.Effectiveness),
		zap.Int("regression_count", result.RegressionCount),
		zap.Float64("convergence_score", result.ConvergenceScore),
		zap.Bool("converged", stopped),
		zap.String("reason", reason),
	)
}

// Failed records the terminal failure of a run.
func (l *Logger) Failed(runID string, phase pipeline.Phase, reason string) {
	if l == nil {
		return
	}
	l.z.Error("run_failed",
		zap.String("run_id", runID),
		zap.String("phase", string(phase)),
		zap.String("reason", reason),
	)
}

// Interrupted records a shutdown signal taking effect.
func (l *Logger) Interrupted(runID string, phase pipeline.Phase, reason string) {
	if l == nil {
		return
	}
	l.z.Warn("run_interrupted",
		zap.String("run_id", runID),
		zap.String("phase", string(phase)),
		zap.String("reason", reason),
	)
}
