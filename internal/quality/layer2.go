package quality

import "github.com/pipelineforge/orchestrator/internal/pipeline"

// RunLayer2 inspects an IntegrationReport's pass ratios and recorded
// contract violations.
func RunLayer2(report pipeline.IntegrationReport) pipeline.LayerResult {
	layer := pipeline.LayerResult{
		LayerID:            2,
		ContractViolations: report.Violations,
	}

	tallies := []pipeline.TestTally{report.ContractTests, report.IntegrationTests, report.DataFlowTests, report.BoundaryTests}
	for _, t := range tallies {
		layer.TotalChecks += t.Total
		layer.PassedChecks += t.Passed
	}

	hasBlockingViolation := false
	for _, v := range report.Violations {
		if v.Severity == pipeline.SeverityError {
			hasBlockingViolation = true
			break
		}
	}

	switch {
	case layer.TotalChecks == 0:
		layer.Verdict = pipeline.VerdictFailed
	case hasBlockingViolation:
		layer.Verdict = pipeline.VerdictFailed
	case layer.PassedChecks == layer.TotalChecks:
		layer.Verdict = pipeline.VerdictPassed
	default:
		layer.Verdict = pipeline.VerdictPartial
	}
	return layer
}
