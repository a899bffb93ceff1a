package state

import "github.com/pipelineforge/orchestrator/internal/pipeline"

// GuardConfigured requires a PRD path to be set before decomposition starts.
func GuardConfigured(s *pipeline.PipelineState) bool {
	return s.PRDPath != ""
}

// GuardHasServiceMap requires the architect to have produced a service map.
func GuardHasServiceMap(s *pipeline.PipelineState) bool {
	return s.ServiceMapPath != "" && len(s.Services) > 0
}

// GuardServiceMapValid requires every service to carry a non-empty id.
func GuardServiceMapValid(s *pipeline.PipelineState) bool {
	if len(s.Services) == 0 {
		return false
	}
	for id := range s.Services {
		if id == "" {
			return false
		}
	}
	return true
}

// GuardContractsValid requires the contracts directory to have been set.
func GuardContractsValid(s *pipeline.PipelineState) bool {
	return s.ContractsDir != ""
}

// GuardHasBuilderResults requires at least one recorded builder result.
func GuardHasBuilderResults(s *pipeline.PipelineState) bool {
	return len(s.BuilderResults) > 0
}

// GuardAtLeastOneBuilderPassed allows integration to start as long as
// one builder succeeded; a failing builder alone never aborts the phase.
func GuardAtLeastOneBuilderPassed(s *pipeline.PipelineState) bool {
	for _, r := range s.BuilderResults {
		if r.Success {
			return true
		}
	}
	return false
}

// GuardHasIntegrationReport requires the integration report path to be set.
func GuardHasIntegrationReport(s *pipeline.PipelineState) bool {
	return s.IntegrationReportPath != ""
}

// GuardGatePassed requires the last quality result to have passed.
func GuardGatePassed(s *pipeline.PipelineState) bool {
	return s.LastQualityResult != nil && s.LastQualityResult.Passed()
}

// GuardAttemptsRemaining requires fix attempts to remain and the gate to
// have failed (otherwise quality_passed would have fired instead).
func GuardAttemptsRemaining(s *pipeline.PipelineState) bool {
	if s.LastQualityResult == nil || s.LastQualityResult.Passed() {
		return false
	}
	return s.QualityAttempts < s.LastQualityResult.MaxFixAttempts
}

// GuardAdvisoryOnly reads the advisory_only flag the quality-gate handler
// records in phase_artifacts: true when the gate's overall verdict is not
// PASSED yet no error-severity violation was counted.
func GuardAdvisoryOnly(s *pipeline.PipelineState) bool {
	artifacts := s.PhaseArtifacts[pipeline.PhaseQualityGate]
	advisory, _ := artifacts["advisory_only"].(bool)
	return advisory
}

// GuardFixApplied requires the most recent fix pass to have run at least
// one APPLY step.
func GuardFixApplied(s *pipeline.PipelineState) bool {
	if len(s.FixPassResults) == 0 {
		return false
	}
	last := s.FixPassResults[len(s.FixPassResults)-1]
	for _, step := range last.StepsCompleted {
		if step == "APPLY" {
			return true
		}
	}
	return false
}

// GuardRetriesRemaining requires the architect retry budget to remain.
func GuardRetriesRemaining(s *pipeline.PipelineState) bool {
	const maxArchitectRetries = 3
	return s.ArchitectRetryCount < maxArchitectRetries
}
