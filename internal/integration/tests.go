package integration

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// TestSuite runs one category of post-deploy test against the live
// stack and returns a tally plus any violations it found.
type TestSuite interface {
	Name() string
	Run(ctx context.Context, services map[string]pipeline.ServiceInfo) (pipeline.TestTally, []pipeline.ContractViolation, error)
}

// RunSuites runs every suite concurrently (contract, integration,
// data-flow, boundary tests are independent of each other — none
// depends on another's outcome) and folds the results into one report.
func RunSuites(ctx context.Context, services map[string]pipeline.ServiceInfo, contract, integrationSuite, dataFlow, boundary TestSuite) (pipeline.IntegrationReport, error) {
	report := pipeline.IntegrationReport{}
	suites := []struct {
		suite TestSuite
		tally *pipeline.TestTally
	}{
		{contract, &report.ContractTests},
		{integrationSuite, &report.IntegrationTests},
		{dataFlow, &report.DataFlowTests},
		{boundary, &report.BoundaryTests},
	}

	g, gCtx := errgroup.WithContext(ctx)
	violationsBySuite := make([][]pipeline.ContractViolation, len(suites))

	for i, entry := range suites {
		i, entry := i, entry
		g.Go(func() error {
			tally, violations, err := entry.suite.Run(gCtx, services)
			if err != nil {
				return err
			}
			*entry.tally = tally
			violationsBySuite[i] = violations
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, v := range violationsBySuite {
		report.Violations = append(report.Violations, v...)
	}
	return report, nil
}

// healthSuite stands in for one of the four post-deploy test runners
// (property-based API tests, consumer-driven contract verification,
// cross-service flow tests, boundary tests) this core doesn't
// implement — those are external collaborators (Schemathesis, Pact,
// a data-flow tracer). It derives a pass/total tally and violations
// from the same health probes every category shares, tagging failures
// with its own contract-violation code so the integration report shows
// which suite each failure came from.
type healthSuite struct {
	name     string
	code     string
	statuses []HealthStatus
}

func (h healthSuite) Name() string { return h.name }

func (h healthSuite) Run(ctx context.Context, services map[string]pipeline.ServiceInfo) (pipeline.TestTally, []pipeline.ContractViolation, error) {
	tally := pipeline.TestTally{}
	var violations []pipeline.ContractViolation
	for _, s := range h.statuses {
		tally.Total++
		if s.Healthy {
			tally.Passed++
			continue
		}
		violations = append(violations, pipeline.ContractViolation{
			Code: h.code, Severity: pipeline.SeverityError, Service: s.ServiceID,
			Message: h.name + " suite: service did not report healthy before the integration timeout",
		})
	}
	return tally, violations, nil
}

// HealthDerivedSuites builds the four post-deploy suites RunSuites
// expects from one set of health probes.
func HealthDerivedSuites(statuses []HealthStatus) (contract, integrationSuite, dataFlow, boundary TestSuite) {
	return healthSuite{"contract", "CONTRACT001", statuses},
		healthSuite{"integration", "INTEGRATION001", statuses},
		healthSuite{"data_flow", "DATAFLOW001", statuses},
		healthSuite{"boundary", "BOUNDARY001", statuses}
}
