package quality

import "github.com/pipelineforge/orchestrator/internal/pipeline"

// RunLayer1 inspects each service's BuilderResult for build success
// only; the result's test counts are not consulted. A service that
// failed to build adds a BUILD001 violation and degrades the layer's
// verdict.
func RunLayer1(results map[string]pipeline.BuilderResult) pipeline.LayerResult {
	layer := pipeline.LayerResult{LayerID: 1}
	total, passed := 0, 0
	for serviceID, r := range results {
		total++
		if r.Success {
			passed++
			continue
		}
		layer.Violations = append(layer.Violations, pipeline.ScanViolation{
			Code:     "BUILD001",
			Severity: pipeline.SeverityError,
			Service:  serviceID,
			Message:  "builder did not succeed: " + r.Error,
		})
	}
	layer.TotalChecks = total
	layer.PassedChecks = passed

	switch {
	case total == 0:
		layer.Verdict = pipeline.VerdictFailed
	case passed == total:
		layer.Verdict = pipeline.VerdictPassed
	case passed > 0:
		layer.Verdict = pipeline.VerdictPartial
	default:
		layer.Verdict = pipeline.VerdictFailed
	}
	return layer
}
