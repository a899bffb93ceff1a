package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipelineforge/orchestrator/internal/atomicfile"
	"github.com/pipelineforge/orchestrator/internal/fixpass"
	"github.com/pipelineforge/orchestrator/internal/integration"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/pipeline/errs"
	"github.com/pipelineforge/orchestrator/internal/pipeline/state"
	"github.com/pipelineforge/orchestrator/internal/quality"
	"github.com/pipelineforge/orchestrator/internal/scheduler"
)

// handleInit validates that a PRD path was configured and starts
// decomposition. A missing PRD path is a configuration error surfaced
// before the run ever leaves init.
func (d *Driver) handleInit(ctx context.Context) error {
	if d.State.PRDPath == "" {
		d.failWith(errs.Configuration("no PRD path configured", nil))
		return nil
	}
	d.State.MarkPhaseComplete(pipeline.PhaseInit, map[string]any{"prd_path": d.State.PRDPath})
	d.fire(state.TriggerStartArchitect)
	return nil
}

// handleArchitectRunning calls the architect collaborator to decompose
// the PRD into a service map. Re-entrant: if a service map was already
// produced (e.g. a resumed run whose service map was already persisted),
// it is kept rather than re-requested.
func (d *Driver) handleArchitectRunning(ctx context.Context) error {
	if d.collab.Architect == nil {
		d.failWith(errs.Configuration("architect collaborator not configured", nil))
		return nil
	}
	if len(d.State.Services) == 0 {
		services, degraded, err := d.collab.Architect.Design(ctx, d.State.PRDPath)
		if err != nil {
			d.failWith(errs.Transient("architect design_services failed", err))
			return nil
		}
		d.chargeAndRecord(pipeline.PhaseArchitectRunning, estimateArchitectCost(len(services)))
		if len(services) == 0 {
			d.State.ArchitectRetryCount++
			if d.fire(state.TriggerRetryArchitect) {
				return nil
			}
			d.failWith(errs.Structured("architect produced no services and no fallback decomposition is available", nil))
			return nil
		}
		d.State.Services = services
		mapPath := d.outputDir + "/service_map.json"
		if err := atomicfile.WriteJSON(mapPath, services); err != nil {
			d.failWith(errs.Invariant("write service_map.json", err))
			return nil
		}
		d.State.ServiceMapPath = mapPath
		d.State.MarkPhaseComplete(pipeline.PhaseArchitectRunning, map[string]any{
			"service_count": len(services),
			"degraded":      degraded,
		})
	}
	d.fire(state.TriggerArchitectDone)
	return nil
}

// handleArchitectReview auto-approves the service map when configured
// to, otherwise leaves the state machine parked in architect_review
// for an operator to advance externally (e.g. by running `build` or
// `resume` with auto_approve flipped on, or a future interactive approval path
// not modeled by this CLI-only core).
func (d *Driver) handleArchitectReview(ctx context.Context) error {
	if !d.cfg.Architect.AutoApprove {
		// Nothing to do until an operator approves; the phase handler
		// returns without firing a trigger, leaving the machine parked
		// here. The driver loop will simply re-enter this handler on
		// the next Run() call (e.g. a subsequent `resume`).
		return nil
	}
	if d.collab.Architect != nil {
		reviewed, degraded, err := d.collab.Architect.Review(ctx, d.State.Services, d.allProvidedContractIDs())
		if err == nil {
			d.State.Services = reviewed
			d.State.MarkPhaseComplete(pipeline.PhaseArchitectReview, map[string]any{"auto_approved": true, "degraded": degraded})
		}
	}
	if d.State.PhaseArtifacts[pipeline.PhaseArchitectReview] == nil {
		d.State.MarkPhaseComplete(pipeline.PhaseArchitectReview, map[string]any{"auto_approved": true})
	}
	d.fire(state.TriggerApproveArchitect)
	return nil
}

// allProvidedContractIDs flattens every service's registered contract ids.
// Before registration has happened (architect_review always precedes
// contracts_registering in the transition table, so this is normally
// empty) it returns nil, which the architect treats the same as "no
// contracts registered yet."
func (d *Driver) allProvidedContractIDs() []string {
	if !d.hasRegistration {
		return nil
	}
	var ids []string
	for serviceID := range d.State.Services {
		ids = append(ids, d.registered.ProvidedIDs(serviceID)...)
	}
	return ids
}

// ensureRegistration registers contracts for every service on first use
// and caches the result on the Driver. Subsequent calls on the same
// Driver (from builders_running, or from the fix pass's re-apply path)
// reuse the cached registration; the cache is held in memory only, so a
// resumed run registers again on its first call.
func (d *Driver) ensureRegistration(ctx context.Context) (scheduler.RegistrationResult, error) {
	if d.hasRegistration {
		return d.registered, nil
	}
	if d.collab.Contracts == nil {
		return scheduler.RegistrationResult{}, fmt.Errorf("contract engine collaborator not configured")
	}
	result, err := scheduler.RegisterAll(ctx, d.collab.Contracts, d.State.Services)
	if err != nil {
		return scheduler.RegistrationResult{}, err
	}
	d.registered = result
	d.hasRegistration = true
	return result, nil
}

// handleContractsRegistering registers a contract stub per service,
// falling back to the filesystem per-service on failure. Re-entrant:
// re-registration is safe because the contract engine and the
// filesystem fallback both treat it as an upsert.
func (d *Driver) handleContractsRegistering(ctx context.Context) error {
	if d.collab.Contracts == nil {
		d.failWith(errs.Configuration("contract engine collaborator not configured", nil))
		return nil
	}
	result, err := d.ensureRegistration(ctx)
	if err != nil {
		d.failWith(errs.Structured("contract registration failed", err))
		return nil
	}
	contractsDir := d.outputDir + "/contracts"
	d.State.ContractsDir = contractsDir
	d.State.MarkPhaseComplete(pipeline.PhaseContractsRegistering, map[string]any{
		"degraded":      result.Degraded,
		"service_count": len(d.State.Services),
	})
	d.fire(state.TriggerContractsRegistered)
	return nil
}

// handleBuildersRunning launches one builder subprocess per service
// that doesn't already have a successful result on the state (resume
// tolerance: services whose STATE.json already reported success are
// skipped rather than rebuilt).
func (d *Driver) handleBuildersRunning(ctx context.Context) error {
	if d.collab.Scheduler == nil {
		d.failWith(errs.Configuration("scheduler not configured", nil))
		return nil
	}
	registered, err := d.ensureRegistration(ctx)
	if err != nil {
		d.failWith(errs.Structured("contract registration unavailable for builder materialization", err))
		return nil
	}

	pending := map[string]pipeline.ServiceInfo{}
	for id, svc := range d.State.Services {
		if existing, ok := d.State.BuilderResults[id]; ok && existing.Success {
			continue
		}
		pending[id] = svc
	}

	if len(pending) > 0 {
		results, err := d.collab.Scheduler.RunAll(ctx, d.State.PRDPath, pending, registered)
		if err != nil {
			d.failWith(errs.Builder("builder fan-out failed", err))
			return nil
		}
		if d.State.BuilderResults == nil {
			d.State.BuilderResults = map[string]pipeline.BuilderResult{}
		}
		if d.State.BuilderStatuses == nil {
			d.State.BuilderStatuses = map[string]pipeline.BuilderStatus{}
		}
		if d.State.BuilderCosts == nil {
			d.State.BuilderCosts = map[string]float64{}
		}
		for id, r := range results {
			d.State.BuilderResults[id] = r
			d.State.BuilderStatuses[id] = builderStatusOf(r)
			d.State.BuilderCosts[id] = r.Cost
			d.chargeAndRecord(pipeline.PhaseBuildersRunning, r.Cost)
			if d.metrics != nil {
				d.metrics.ObserveBuilderResult(d.State.BuilderStatuses[id])
			}
		}
	}

	d.State.MarkPhaseComplete(pipeline.PhaseBuildersRunning, map[string]any{
		"builder_count": len(d.State.Services),
		"ran_this_pass": len(pending),
	})
	d.fire(state.TriggerBuildersDone)
	return nil
}

func builderStatusOf(r pipeline.BuilderResult) pipeline.BuilderStatus {
	switch {
	case r.Success:
		return pipeline.BuilderBuilt
	case r.Error == "timeout":
		return pipeline.BuilderTimeout
	default:
		return pipeline.BuilderFailed
	}
}

// handleBuildersComplete has no work of its own: it records the
// builder tally and attempts to advance to integration, which only
// succeeds once at least one builder has produced a successful result.
func (d *Driver) handleBuildersComplete(ctx context.Context) error {
	passed := 0
	for _, r := range d.State.BuilderResults {
		if r.Success {
			passed++
		}
	}
	d.State.MarkPhaseComplete(pipeline.PhaseBuildersComplete, map[string]any{
		"passed": passed,
		"total":  len(d.State.BuilderResults),
	})
	if !d.fire(state.TriggerStartIntegration) {
		d.failWith(errs.Builder("no builder produced a successful result", nil))
	}
	return nil
}

// handleIntegrating deploys every service that builders produced,
// waits for health, runs the test suites, and always tears the stack
// back down regardless of outcome.
func (d *Driver) handleIntegrating(ctx context.Context) error {
	if d.collab.Harness == nil {
		d.failWith(errs.Configuration("integration harness not configured", nil))
		return nil
	}
	deployable := map[string]pipeline.ServiceInfo{}
	for id, svc := range d.State.Services {
		if r, ok := d.State.BuilderResults[id]; ok && r.Success {
			deployable[id] = svc
		}
	}

	defer func() {
		_ = d.collab.Harness.Teardown(context.Background(), deployable)
	}()

	statuses, deployErr := d.collab.Harness.Deploy(ctx, deployable)
	report, suiteErr := integration.RunPostDeployTests(ctx, deployable, statuses)
	report = integration.BuildReport(statuses, report)
	if suiteErr != nil {
		report.Violations = append(report.Violations, pipeline.ContractViolation{
			Code: "SUITE001", Severity: pipeline.SeverityError,
			Message: suiteErr.Error(),
		})
	}
	if deployErr != nil {
		report.Violations = append(report.Violations, pipeline.ContractViolation{
			Code: "DEPLOY001", Severity: pipeline.SeverityError,
			Message: deployErr.Error(),
		})
	}

	jsonPath := d.outputDir + "/INTEGRATION_REPORT.json"
	if err := atomicfile.WriteJSON(jsonPath, report); err != nil {
		d.failWith(errs.Invariant("write integration report", err))
		return nil
	}
	mdPath := d.outputDir + "/INTEGRATION_REPORT.md"
	_ = atomicfile.WriteBytes(mdPath, []byte(renderIntegrationMarkdown(report)))

	d.State.IntegrationReportPath = jsonPath
	d.State.DeployedServices = keysOf(deployable)
	d.State.MarkPhaseComplete(pipeline.PhaseIntegrating, map[string]any{
		"deployed":        len(deployable),
		"healthy":         report.HealthyCount,
		"overall_healthy": report.OverallHealthy,
	})
	d.fire(state.TriggerIntegrationDone)
	return nil
}

func renderIntegrationMarkdown(r pipeline.IntegrationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Integration Report\n\n")
	fmt.Fprintf(&b, "- Deployed: %d\n- Healthy: %d\n- Overall healthy: %v\n\n", r.DeployedServiceCount, r.HealthyCount, r.OverallHealthy)
	fmt.Fprintf(&b, "## Violations\n\n")
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", v.Code, v.Service, v.Message)
	}
	return b.String()
}

func keysOf(m map[string]pipeline.ServiceInfo) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// handleQualityGate runs the four-layer gate and decides, via the
// guard table, whether the run completes, enters a fix pass, or fails.
func (d *Driver) handleQualityGate(ctx context.Context) error {
	if d.collab.Gate == nil {
		d.failWith(errs.Configuration("quality gate not configured", nil))
		return nil
	}
	var integrationReport pipeline.IntegrationReport
	if err := atomicfile.ReadJSON(d.State.IntegrationReportPath, &integrationReport); err != nil {
		d.failWith(errs.Invariant("read integration report", err))
		return nil
	}

	d.State.QualityAttempts++
	report := d.collab.Gate.Run(ctx, d.State.BuilderResults, integrationReport, d.outputDir, d.State.Services, d.graphNodes(), d.State.QualityAttempts)
	report.MaxFixAttempts = maxOf(report.MaxFixAttempts, d.cfg.QualityGate.MaxFixRetries)
	d.State.LastQualityResult = &report

	for _, layer := range report.Layers {
		d.audit.LayerVerdict(d.State.RunID, d.State.QualityAttempts, layer)
	}
	if d.metrics != nil {
		d.metrics.ObserveQualityVerdict(report.OverallVerdict)
	}

	jsonPath := d.outputDir + "/QUALITY_GATE_REPORT.json"
	_ = atomicfile.WriteJSON(jsonPath, report)
	mdPath := d.outputDir + "/QUALITY_GATE_REPORT.md"
	_ = atomicfile.WriteBytes(mdPath, []byte(renderQualityMarkdown(report)))
	d.State.QualityReportPath = jsonPath

	// A non-passing verdict with zero error-severity violations arises when
	// the worst layer is PARTIAL (only warnings or info were found) or a
	// layer failed on its own rule (e.g. layer 2's pass ratios) without
	// recording an error-severity violation; the handler treats that
	// combination as advisory rather than holding the run open forever.
	advisoryOnly := report.OverallVerdict != pipeline.VerdictPassed && report.BlockingViolationCount == 0
	artifacts := map[string]any{
		"overall_verdict":  string(report.OverallVerdict),
		"quality_attempts": d.State.QualityAttempts,
		"advisory_only":    advisoryOnly,
	}
	d.State.MarkPhaseComplete(pipeline.PhaseQualityGate, artifacts)

	switch {
	case d.fire(state.TriggerQualityPassed):
	case d.fire(state.TriggerSkipToComplete):
	case d.fire(state.TriggerQualityNeedsFix):
	default:
		d.failWith(errs.GateBlocking(fmt.Sprintf("quality gate failed with %d blocking violations and no attempts remaining", report.BlockingViolationCount)))
	}
	return nil
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func renderQualityMarkdown(r pipeline.QualityGateReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Quality Gate Report\n\n- Overall verdict: %s\n- Fix attempts: %d/%d\n- Total violations: %d\n- Blocking violations: %d\n\n",
		r.OverallVerdict, r.FixAttempts, r.MaxFixAttempts, r.TotalViolationCount, r.BlockingViolationCount)
	for _, layer := range r.Layers {
		fmt.Fprintf(&b, "## Layer %d: %s\n\n", layer.LayerID, layer.Verdict)
		for _, v := range layer.Violations {
			fmt.Fprintf(&b, "- [%s] %s:%d — %s\n", v.Code, v.File, v.Line, v.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// graphNodes builds the advisory cross-service graph from each
// service's contract/event relationships recorded during registration.
// When graph RAG is disabled in config, this returns an empty slice and
// Layer 4 simply finds nothing to flag — it never synthesizes event
// wiring the architect didn't report.
func (d *Driver) graphNodes() []quality.ServiceGraphNode {
	if !d.cfg.GraphRAG.Enabled || !d.hasRegistration {
		return nil
	}
	var nodes []quality.ServiceGraphNode
	for serviceID := range d.State.Services {
		for _, consumed := range d.registered.ConsumedNames(serviceID) {
			nodes = append(nodes, quality.ServiceGraphNode{
				Name:       consumed,
				Publishers: []string{consumed},
				Consumers:  []string{serviceID},
			})
		}
	}
	return nodes
}

// handleFixPass runs one DISCOVER/CLASSIFY/GENERATE/APPLY/VERIFY/REGRESS
// cycle. A genuine hard stop (regressions outpacing fixes, fixes not
// taking effect, or the pass budget exhausted) fails the run outright;
// every other outcome — including convergence — routes back through
// builders_running so the next quality_gate run independently confirms
// the pass against freshly rebuilt services, per the transition table
// (fix_pass has no direct trigger to `complete`).
func (d *Driver) handleFixPass(ctx context.Context) error {
	if d.collab.Gate == nil || d.collab.Scheduler == nil {
		d.failWith(errs.Configuration("fix-pass requires both the quality gate and scheduler", nil))
		return nil
	}

	passNumber := len(d.State.FixPassResults) + 1
	var before pipeline.ViolationSnapshot
	if passNumber > 1 {
		before = d.State.FixPassResults[passNumber-2].AfterSnapshot
	}

	deps := fixpass.Deps{
		ScanFn:     d.rescanViolations,
		ApplyFn:    d.reapplyBuilder,
		ContextFor: d.contextFor,
		OutputDir:  d.outputDir,
		GraphNodes: d.graphNodes(),
	}

	initialWeighted := d.initialWeighted()
	in := fixpass.ConvergenceInputs{
		PassNumber:      passNumber,
		MaxPasses:       maxOf(d.cfg.QualityGate.MaxFixRetries, 1),
		BudgetLimited:   d.State.BudgetLimit != nil,
		InitialWeighted: initialWeighted,
	}
	if d.State.BudgetLimit != nil {
		total, _ := d.cost.Snapshot()
		in.RemainingBudget = *d.State.BudgetLimit - total
	}
	in.NewDefectsLastTwo = d.lastRegressionCounts()

	result, decision := fixpass.RunPass(ctx, deps, passNumber, before, in)
	d.chargeAndRecord(pipeline.PhaseFixPass, result.Cost)
	d.State.FixPassResults = append(d.State.FixPassResults, result)
	d.audit.FixPass(d.State.RunID, result, decision.Stop, decision.Reason)

	d.State.MarkPhaseComplete(pipeline.PhaseFixPass, map[string]any{
		"pass_number": passNumber,
		"status":      result.Status,
	})

	if decision.Stop && isHardFailure(decision.Reason) {
		d.failWith(errs.GateBlocking("fix pass hard-stopped: " + decision.Reason))
		return nil
	}
	if !d.fire(state.TriggerFixDone) {
		d.failWith(errs.Invariant("fix_done trigger rejected", fmt.Errorf("no APPLY step recorded")))
	}
	return nil
}

func isHardFailure(reason string) bool {
	for _, phrase := range []string{"regression rate", "not effective", "reached max fix passes", "budget exhausted"} {
		if strings.Contains(reason, phrase) {
			return true
		}
	}
	return false
}

// initialWeighted returns the weighted P0/P1/P2 score observed before the
// very first fix pass ran, the fixed baseline every subsequent pass's
// convergence score is measured against. Once a first pass exists its
// ViolationsBefore tally is authoritative; only on pass 1, before any
// FixPassResult has been recorded, is it derived from the quality gate
// report directly.
func (d *Driver) initialWeighted() float64 {
	var counts pipeline.PriorityCounts
	if len(d.State.FixPassResults) > 0 {
		counts = d.State.FixPassResults[0].ViolationsBefore
	} else if d.State.LastQualityResult != nil {
		counts = countsFromReport(*d.State.LastQualityResult)
	}
	return 0.4*float64(counts.P0) + 0.3*float64(counts.P1) + 0.1*float64(counts.P2)
}

func countsFromReport(report pipeline.QualityGateReport) pipeline.PriorityCounts {
	counts := pipeline.PriorityCounts{}
	for _, layer := range report.Layers {
		for _, v := range layer.Violations {
			switch v.Severity {
			case pipeline.SeverityError:
				counts.P1++
			case pipeline.SeverityWarning:
				counts.P2++
			default:
				counts.P3++
			}
		}
	}
	return counts
}

func (d *Driver) lastRegressionCounts() []int {
	var out []int
	for _, r := range d.State.FixPassResults {
		out = append(out, r.RegressionCount)
	}
	return out
}

func (d *Driver) rescanViolations(ctx context.Context) ([]pipeline.ScanViolation, error) {
	var integrationReport pipeline.IntegrationReport
	_ = atomicfile.ReadJSON(d.State.IntegrationReportPath, &integrationReport)
	report := d.collab.Gate.Run(ctx, d.State.BuilderResults, integrationReport, d.outputDir, d.State.Services, d.graphNodes(), d.State.QualityAttempts)
	var violations []pipeline.ScanViolation
	for _, layer := range report.Layers {
		violations = append(violations, layer.Violations...)
	}
	return violations, nil
}

func (d *Driver) reapplyBuilder(ctx context.Context, serviceID string) error {
	svc, ok := d.State.Services[serviceID]
	if !ok {
		return fmt.Errorf("unknown service %s", serviceID)
	}
	registered, err := d.ensureRegistration(ctx)
	if err != nil {
		return err
	}
	results, err := d.collab.Scheduler.RunAll(ctx, d.State.PRDPath, map[string]pipeline.ServiceInfo{serviceID: svc}, registered)
	if err != nil {
		return err
	}
	if r, ok := results[serviceID]; ok {
		d.State.BuilderResults[serviceID] = r
		d.State.BuilderStatuses[serviceID] = builderStatusOf(r)
	}
	return nil
}

func (d *Driver) contextFor(ctx context.Context, serviceID string) string {
	var block string
	if d.collab.GraphRAG != nil {
		svc := d.State.Services[serviceID]
		consumes := d.registered.ConsumedNames(serviceID)
		if b, _, err := d.collab.GraphRAG.Context(ctx, svc, consumes); err == nil {
			block = b
		}
	}
	if symbols := d.existingSymbols(ctx, serviceID); symbols != "" {
		block += "\n## Existing symbols\n\n" + symbols
	}
	return block
}

// existingSymbols summarizes the declarations a service's builder
// already produced, so a fix pass's GENERATE step names things the
// builder's own output already defines instead of inventing a
// colliding symbol. Only the entrypoint file is inspected: it is the
// one path every builder is guaranteed to write, regardless of stack.
func (d *Driver) existingSymbols(ctx context.Context, serviceID string) string {
	if d.collab.CodeIntel == nil {
		return ""
	}
	result, ok := d.State.BuilderResults[serviceID]
	if !ok || result.OutputDirectory == "" {
		return ""
	}
	entrypoint := result.OutputDirectory + "/main.go"
	symbols, _, err := d.collab.CodeIntel.Symbols(ctx, entrypoint)
	if err != nil || len(symbols) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range symbols {
		fmt.Fprintf(&b, "- %s %s (line %d)\n", s.Kind, s.Name, s.Line)
	}
	return b.String()
}

func estimateArchitectCost(serviceCount int) float64 {
	return 0.05 * float64(serviceCount+1)
}
