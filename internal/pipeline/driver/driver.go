/*
Package driver implements the pipeline's top-level loop: dispatch the
current phase to its handler, persist state before every transition,
honor shutdown and budget on every iteration. This is the literal
`while current_phase not in {complete, failed}` loop from the design,
written as a Go for loop over a handler map.
*/
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/pipelineforge/orchestrator/internal/atomicfile"
	"github.com/pipelineforge/orchestrator/internal/auditlog"
	"github.com/pipelineforge/orchestrator/internal/collab"
	"github.com/pipelineforge/orchestrator/internal/config"
	"github.com/pipelineforge/orchestrator/internal/integration"
	"github.com/pipelineforge/orchestrator/internal/metrics"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/pipeline/cost"
	"github.com/pipelineforge/orchestrator/internal/pipeline/errs"
	"github.com/pipelineforge/orchestrator/internal/pipeline/shutdown"
	"github.com/pipelineforge/orchestrator/internal/pipeline/state"
	"github.com/pipelineforge/orchestrator/internal/quality"
	"github.com/pipelineforge/orchestrator/internal/scheduler"
)

// StatePath is the filename the driver persists PipelineState under,
// relative to a run's output directory.
const StatePath = "PIPELINE_STATE.json"

// ErrNewerSchema is returned by Load when a persisted state document
// carries a schema version this binary doesn't understand. Per the
// design's resolution of the open question, this is a refusal, not a
// silent forward-compatible key drop.
type ErrNewerSchema struct {
	Found, Understood int
}

func (e *ErrNewerSchema) Error() string {
	return fmt.Sprintf("state schema version %d is newer than this binary understands (%d); refusing to resume", e.Found, e.Understood)
}

// Collaborators bundles every external adapter a Driver needs. Each
// field may be nil in a unit test that only exercises a subset of
// phases; handlers that need a missing collaborator fail the run with a
// configuration error rather than panicking.
type Collaborators struct {
	Architect *collab.ArchitectClient
	Contracts *collab.ContractEngineClient
	GraphRAG  *collab.GraphRAGClient
	CodeIntel *collab.CodeIntelClient
	Scheduler *scheduler.Scheduler
	Gate      *quality.Gate
	Harness   *integration.Harness
}

// Driver owns the PipelineState for the duration of a run and drives it
// through the phase handlers.
type Driver struct {
	State *pipeline.PipelineState

	machine         *state.Machine
	cost            *cost.Tracker
	shutdown        *shutdown.Coordinator
	cfg             config.Config
	outputDir       string
	statePath       string
	collab          Collaborators
	audit           *auditlog.Logger
	metrics         *metrics.Recorder
	registered      scheduler.RegistrationResult
	hasRegistration bool
}

// New builds a Driver for a fresh or resumed run.
func New(st *pipeline.PipelineState, cfg config.Config, outputDir string, collaborators Collaborators, coordinator *shutdown.Coordinator, audit *auditlog.Logger, rec *metrics.Recorder) *Driver {
	if audit == nil {
		audit = auditlog.NewNop()
	}
	// A fresh run seeds its budget ceiling from config; a resumed run
	// keeps whatever was already persisted, since a later config edit
	// shouldn't retroactively change a run already in progress.
	if st.BudgetLimit == nil && cfg.BudgetLimit > 0 {
		limit := cfg.BudgetLimit
		st.BudgetLimit = &limit
	}
	return &Driver{
		State:     st,
		machine:   state.New(),
		cost:      cost.LoadFromState(st),
		shutdown:  coordinator,
		cfg:       cfg,
		outputDir: outputDir,
		statePath: statePath(outputDir),
		collab:    collaborators,
		audit:     audit,
		metrics:   rec,
	}
}

func statePath(outputDir string) string {
	return outputDir + "/" + StatePath
}

// Load reads a persisted PipelineState from outputDir, refusing to
// resume a document written by a newer schema version.
func Load(outputDir string) (*pipeline.PipelineState, error) {
	var st pipeline.PipelineState
	if err := atomicfile.ReadJSON(statePath(outputDir), &st); err != nil {
		return nil, err
	}
	if st.SchemaVersion > pipeline.CurrentSchemaVersion {
		return nil, &ErrNewerSchema{Found: st.SchemaVersion, Understood: pipeline.CurrentSchemaVersion}
	}
	return &st, nil
}

// Persist atomically writes the current state to its run directory.
func (d *Driver) Persist() error {
	d.State.UpdatedAt = time.Now()
	d.cost.ApplyTo(d.State)
	if d.metrics != nil {
		d.metrics.SetTotalCost(d.State.TotalCost)
		d.metrics.SetFixPassCount(len(d.State.FixPassResults))
	}
	return atomicfile.WriteJSON(d.statePath, d.State)
}

// Run drives the state machine until it reaches a terminal phase, the
// shutdown coordinator requests a stop, or the budget is exceeded.
func (d *Driver) Run(ctx context.Context) error {
	return d.runLoop(ctx, nil)
}

// RunUntil drives the state machine the same way Run does, but also
// stops as soon as the current phase equals target, without dispatching
// it. This backs the single-verb CLI commands (`plan`, `build`,
// `integrate`), each of which owns a prefix of the phase
// sequence and parks the run at the boundary rather than driving it all
// the way to `complete`.
func (d *Driver) RunUntil(ctx context.Context, target pipeline.Phase) error {
	return d.runLoop(ctx, func(p pipeline.Phase) bool { return p == target })
}

// RunSinglePhase dispatches exactly the named phase's handler once and
// persists, without looping on to whatever it transitions into. This
// backs `verify`, which runs the quality gate once and stops whether
// the gate passed, demanded a fix pass, or failed outright — unlike
// RunUntil's targets, the phase here has already been reached by an
// earlier command (e.g. `integrate`) and must actually be dispatched,
// not skipped.
func (d *Driver) RunSinglePhase(ctx context.Context, phase pipeline.Phase) error {
	if d.State.CurrentPhase != phase {
		return fmt.Errorf("run is at phase %q, not %q; run the preceding commands first", d.State.CurrentPhase, phase)
	}
	if d.shutdown != nil && d.shutdown.ShouldStop() {
		d.State.Interrupted = true
		d.State.InterruptReason = d.shutdown.Reason()
		d.audit.Interrupted(d.State.RunID, d.State.CurrentPhase, d.State.InterruptReason)
		return d.Persist()
	}
	if d.cost.CheckBudget() == cost.OverBudget {
		d.failWith(errs.Budget("accumulated cost exceeds budget_limit"))
		return d.Persist()
	}
	if err := d.dispatchSafely(ctx); err != nil {
		_ = d.Persist()
		return err
	}
	return d.Persist()
}

func (d *Driver) runLoop(ctx context.Context, stopAt func(pipeline.Phase) bool) error {
	for !state.IsTerminal(d.State.CurrentPhase) {
		if stopAt != nil && stopAt(d.State.CurrentPhase) {
			return d.Persist()
		}
		if d.shutdown != nil && d.shutdown.ShouldStop() {
			d.State.Interrupted = true
			d.State.InterruptReason = d.shutdown.Reason()
			d.audit.Interrupted(d.State.RunID, d.State.CurrentPhase, d.State.InterruptReason)
			return d.Persist()
		}
		if d.cost.CheckBudget() == cost.OverBudget {
			d.failWith(errs.Budget("accumulated cost exceeds budget_limit"))
			return d.Persist()
		}

		if err := d.dispatchSafely(ctx); err != nil {
			// Handlers convert errors into state updates themselves,
			// and a recovered panic becomes a `fail` transition with a
			// nil error; a non-nil error here is one a handler chose to
			// return. The loop persists and exits rather than looping
			// on a phase that never advances.
			_ = d.Persist()
			return err
		}
		if err := d.Persist(); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
	}
	return d.Persist()
}

// dispatchSafely recovers a panicking handler into an invariant-
// violation failure rather than letting it cross the driver boundary,
// per the propagation policy: handlers never raise past the driver.
func (d *Driver) dispatchSafely(ctx context.Context) (err error) {
	phase := d.State.CurrentPhase
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.failWith(errs.Invariant("handler panicked", fmt.Errorf("%v", r)))
		}
		if d.metrics != nil {
			d.metrics.ObservePhase(phase, time.Since(start).Seconds())
		}
	}()
	return d.dispatch(ctx, phase)
}

func (d *Driver) dispatch(ctx context.Context, phase pipeline.Phase) error {
	switch phase {
	case pipeline.PhaseInit:
		return d.handleInit(ctx)
	case pipeline.PhaseArchitectRunning:
		return d.handleArchitectRunning(ctx)
	case pipeline.PhaseArchitectReview:
		return d.handleArchitectReview(ctx)
	case pipeline.PhaseContractsRegistering:
		return d.handleContractsRegistering(ctx)
	case pipeline.PhaseBuildersRunning:
		return d.handleBuildersRunning(ctx)
	case pipeline.PhaseBuildersComplete:
		return d.handleBuildersComplete(ctx)
	case pipeline.PhaseIntegrating:
		return d.handleIntegrating(ctx)
	case pipeline.PhaseQualityGate:
		return d.handleQualityGate(ctx)
	case pipeline.PhaseFixPass:
		return d.handleFixPass(ctx)
	default:
		d.failWith(errs.Invariant("no handler registered for phase", fmt.Errorf("%s", phase)))
		return nil
	}
}

// fire persists the state (with the handler's work already recorded on
// it) and then fires the trigger, recording the audit event for the
// transition. An invalid trigger is a no-op per the state machine's
// contract: nothing is persisted and fire returns false, so handlers
// check the bool return before assuming progress was made.
func (d *Driver) fire(trigger state.Trigger) bool {
	if !d.machine.CanFire(d.State, trigger) {
		return false
	}
	_ = d.Persist()
	from := d.State.CurrentPhase
	ok := d.machine.Fire(d.State, trigger)
	if ok {
		d.audit.Transition(d.State.RunID, from, d.State.CurrentPhase, string(trigger))
	}
	return ok
}

// failWith records a taxonomy error as the run's terminal failure.
func (d *Driver) failWith(err *errs.PipelineError) {
	phase := d.State.CurrentPhase
	d.audit.Failed(d.State.RunID, phase, err.Error())
	artifacts := d.State.PhaseArtifacts[phase]
	if artifacts == nil {
		artifacts = map[string]any{}
	}
	artifacts["error"] = err.Error()
	artifacts["error_kind"] = string(err.Kind)
	d.State.MarkPhaseComplete(phase, artifacts)
	d.State.InterruptReason = string(err.Kind)
	d.fire(state.TriggerFail)
}

func (d *Driver) chargeAndRecord(phase pipeline.Phase, amount float64) {
	d.cost.Charge(phase, amount)
}
