/*
Package pipeline holds the shared data model for a pipelinectl run:
PipelineState and the entities produced by each phase. Subpackages
(state, cost, shutdown, driver, errs) build the state machine and
driver around this model.
*/
package pipeline

import "time"

// Phase is a named state in the pipeline state machine.
type Phase string

const (
	PhaseInit                 Phase = "init"
	PhaseArchitectRunning     Phase = "architect_running"
	PhaseArchitectReview      Phase = "architect_review"
	PhaseContractsRegistering Phase = "contracts_registering"
	PhaseBuildersRunning      Phase = "builders_running"
	PhaseBuildersComplete     Phase = "builders_complete"
	PhaseIntegrating          Phase = "integrating"
	PhaseQualityGate          Phase = "quality_gate"
	PhaseFixPass              Phase = "fix_pass"
	PhaseComplete             Phase = "complete"
	PhaseFailed               Phase = "failed"
)

// BuilderStatus is the lifecycle status of one service's builder.
type BuilderStatus string

const (
	BuilderPending BuilderStatus = "PENDING"
	BuilderRunning BuilderStatus = "RUNNING"
	BuilderBuilt   BuilderStatus = "BUILT"
	BuilderFailed  BuilderStatus = "FAILED"
	BuilderTimeout BuilderStatus = "TIMEOUT"
)

// Severity grades a violation's blocking weight.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityInfo:    0,
	SeverityWarning: 1,
	SeverityError:   2,
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Verdict is the outcome of a single quality-gate layer.
type Verdict string

const (
	VerdictPassed  Verdict = "PASSED"
	VerdictFailed  Verdict = "FAILED"
	VerdictPartial Verdict = "PARTIAL"
	VerdictSkipped Verdict = "SKIPPED"
)

var verdictRank = map[Verdict]int{
	VerdictPassed:  0,
	VerdictPartial: 1,
	VerdictSkipped: 2,
	VerdictFailed:  3,
}

// Worst returns the more severe of two verdicts.
func Worst(a, b Verdict) Verdict {
	if verdictRank[b] > verdictRank[a] {
		return b
	}
	return a
}

// ServiceInfo describes one service produced by PRD decomposition.
type ServiceInfo struct {
	ServiceID      string         `json:"service_id"`
	Domain         string         `json:"domain"`
	Stack          StackDescriptor `json:"stack"`
	EstimatedSize  string         `json:"estimated_size"`
	HealthEndpoint string         `json:"health_endpoint"`
	Port           int            `json:"port"`
	Status         BuilderStatus  `json:"status"`
	BuildCost      float64        `json:"build_cost"`
	BuildDirectory string         `json:"build_directory"`
}

// StackDescriptor names the language/framework/database a service is built with.
type StackDescriptor struct {
	Language  string `json:"language"`
	Framework string `json:"framework"`
	Database  string `json:"database"`
}

// BuilderResult is the outcome of one builder subprocess.
type BuilderResult struct {
	SystemID          string         `json:"system_id"`
	ServiceID         string         `json:"service_id"`
	Success           bool           `json:"success"`
	Cost              float64        `json:"cost"`
	Error             string         `json:"error,omitempty"`
	OutputDirectory   string         `json:"output_directory"`
	TestsPassed       int            `json:"tests_passed"`
	TestsTotal        int            `json:"tests_total"`
	ConvergenceRatio  float64        `json:"convergence_ratio"`
	Artifacts         map[string]any `json:"artifacts,omitempty"`
}

// ContractViolation is produced by integration/contract verification.
type ContractViolation struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Service  string   `json:"service"`
	Endpoint string   `json:"endpoint"`
	Message  string   `json:"message"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
	File     string   `json:"file,omitempty"`
}

// ScanViolation is produced by a quality-gate scanner.
type ScanViolation struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Service  string   `json:"service"`
	Message  string   `json:"message"`
}

// Key identifies a violation for before/after snapshot diffing.
func (v ScanViolation) Key() ViolationKey {
	return ViolationKey{Code: v.Code, File: v.File, Line: v.Line}
}

// ViolationKey is the (code, file, line) identity used to diff snapshots.
type ViolationKey struct {
	Code string
	File string
	Line int
}

// LayerResult is the outcome of a single quality-gate layer.
type LayerResult struct {
	LayerID              int                  `json:"layer_id"`
	Verdict              Verdict              `json:"verdict"`
	Violations           []ScanViolation      `json:"violations"`
	ContractViolations   []ContractViolation  `json:"contract_violations,omitempty"`
	TotalChecks          int                  `json:"total_checks"`
	PassedChecks         int                  `json:"passed_checks"`
	Duration             time.Duration        `json:"duration"`
}

// QualityGateReport aggregates all four layer results for one attempt.
type QualityGateReport struct {
	Layers                  []LayerResult `json:"layers"`
	OverallVerdict          Verdict       `json:"overall_verdict"`
	FixAttempts             int           `json:"fix_attempts"`
	MaxFixAttempts          int           `json:"max_fix_attempts"`
	TotalViolationCount     int           `json:"total_violation_count"`
	BlockingViolationCount  int           `json:"blocking_violation_count"`
}

// Passed reports whether the report clears the gate.
func (r QualityGateReport) Passed() bool {
	return r.OverallVerdict == VerdictPassed || r.OverallVerdict == VerdictPartial
}

// TestTally is a pass/total pair for one kind of integration test.
type TestTally struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// IntegrationReport is produced by the integration phase.
type IntegrationReport struct {
	DeployedServiceCount int                  `json:"deployed_service_count"`
	HealthyCount         int                  `json:"healthy_count"`
	ContractTests        TestTally            `json:"contract_tests"`
	IntegrationTests     TestTally            `json:"integration_tests"`
	DataFlowTests        TestTally            `json:"data_flow_tests"`
	BoundaryTests        TestTally            `json:"boundary_tests"`
	Violations           []ContractViolation  `json:"violations"`
	OverallHealthy       bool                 `json:"overall_healthy"`
}

// FixPriority classifies a violation's urgency for the fix-pass engine.
type FixPriority string

const (
	PriorityP0 FixPriority = "P0"
	PriorityP1 FixPriority = "P1"
	PriorityP2 FixPriority = "P2"
	PriorityP3 FixPriority = "P3"
)

// ViolationSnapshot is the set of violations observed at one point in the
// fix loop, keyed by (code, file, line).
type ViolationSnapshot map[ViolationKey]ScanViolation

// PriorityCounts tallies a snapshot by priority.
type PriorityCounts struct {
	P0 int `json:"p0"`
	P1 int `json:"p1"`
	P2 int `json:"p2"`
	P3 int `json:"p3"`
}

// FixPassResult is the outcome of one fix-pass cycle.
type FixPassResult struct {
	PassNumber        int               `json:"pass_number"`
	Status            string            `json:"status"`
	StepsCompleted    []string          `json:"steps_completed"`
	ViolationsBefore  PriorityCounts    `json:"violations_before"`
	ViolationsAfter   PriorityCounts    `json:"violations_after"`
	FixesGenerated    int               `json:"fixes_generated"`
	FixesApplied      int               `json:"fixes_applied"`
	FixesVerified     int               `json:"fixes_verified"`
	RegressionCount   int               `json:"regression_count"`
	Effectiveness     float64           `json:"effectiveness"`
	ConvergenceScore  float64           `json:"convergence_score"`
	Cost              float64           `json:"cost"`
	Duration          time.Duration     `json:"duration"`
	BeforeSnapshot    ViolationSnapshot `json:"before_snapshot"`
	AfterSnapshot     ViolationSnapshot `json:"after_snapshot"`
}

// PipelineState is the single persisted document driving the pipeline.
type PipelineState struct {
	RunID    string `json:"run_id"`
	PRDPath  string `json:"prd_path"`
	ConfigPath string `json:"config_path"`

	CurrentPhase   Phase   `json:"current_phase"`
	PreviousPhase  Phase   `json:"previous_phase,omitempty"`
	CompletedPhases []Phase `json:"completed_phases"`
	PhaseArtifacts map[Phase]map[string]any `json:"phase_artifacts"`

	ArchitectRetryCount int `json:"architect_retry_count"`

	ServiceMapPath       string `json:"service_map_path,omitempty"`
	ContractsDir         string `json:"contracts_dir,omitempty"`
	DomainModelPath      string `json:"domain_model_path,omitempty"`
	IntegrationReportPath string `json:"integration_report_path,omitempty"`
	QualityReportPath    string `json:"quality_report_path,omitempty"`

	Services        map[string]ServiceInfo    `json:"services"`
	BuilderStatuses map[string]BuilderStatus  `json:"builder_statuses"`
	BuilderCosts    map[string]float64        `json:"builder_costs"`
	BuilderResults  map[string]BuilderResult  `json:"builder_results"`
	DeployedServices []string                 `json:"deployed_services"`

	QualityAttempts  int                `json:"quality_attempts"`
	LastQualityResult *QualityGateReport `json:"last_quality_result,omitempty"`
	FixPassResults    []FixPassResult    `json:"fix_pass_results"`

	TotalCost   float64            `json:"total_cost"`
	PhaseCosts  map[Phase]float64  `json:"phase_costs"`
	BudgetLimit *float64           `json:"budget_limit,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Interrupted      bool   `json:"interrupted"`
	InterruptReason  string `json:"interrupt_reason,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// CurrentSchemaVersion is the schema version this binary understands. A
// persisted document with a newer version is refused on resume rather
// than silently stripped of unknown fields.
const CurrentSchemaVersion = 1

// NewPipelineState creates a fresh state in the init phase.
func NewPipelineState(runID, prdPath, configPath string) *PipelineState {
	now := time.Now()
	return &PipelineState{
		RunID:           runID,
		PRDPath:         prdPath,
		ConfigPath:      configPath,
		CurrentPhase:    PhaseInit,
		CompletedPhases: []Phase{},
		PhaseArtifacts:  map[Phase]map[string]any{},
		Services:        map[string]ServiceInfo{},
		BuilderStatuses: map[string]BuilderStatus{},
		BuilderCosts:    map[string]float64{},
		BuilderResults:  map[string]BuilderResult{},
		PhaseCosts:      map[Phase]float64{},
		StartedAt:       now,
		UpdatedAt:       now,
		SchemaVersion:   CurrentSchemaVersion,
	}
}

// MarkPhaseComplete records p as completed with the given artifacts.
// Every completed phase must have a non-empty artifact entry, so an
// empty artifact set is filled with a completion timestamp instead of
// being recorded bare.
func (s *PipelineState) MarkPhaseComplete(p Phase, artifacts map[string]any) {
	if len(artifacts) == 0 {
		artifacts = map[string]any{"completed_at": time.Now().Format(time.RFC3339)}
	}
	s.PhaseArtifacts[p] = artifacts
	for _, existing := range s.CompletedPhases {
		if existing == p {
			return
		}
	}
	s.CompletedPhases = append(s.CompletedPhases, p)
}
