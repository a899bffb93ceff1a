package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// ComposeRunner abstracts the compose binary invocation so the harness
// is testable without a real container runtime.
type ComposeRunner interface {
	Up(ctx context.Context, files ComposeFileSet) error
	Down(ctx context.Context, files ComposeFileSet) error
}

// Harness deploys a run's services, waits for health, and runs the
// full post-deploy test suite.
type Harness struct {
	compose      ComposeRunner
	httpClient   HTTPDoer
	traefikImage string
	waitOptions  WaitOptions
}

// New builds a Harness.
func New(compose ComposeRunner, traefikImage string, timeout time.Duration) *Harness {
	opts := DefaultWaitOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	return &Harness{
		compose:      compose,
		httpClient:   http.DefaultClient,
		traefikImage: traefikImage,
		waitOptions:  opts,
	}
}

// Deploy brings up the stack, polls health, and returns health status.
// Deployment continues even if not every service reports healthy: the
// quality gate and test suites run against whatever did come up, so a
// single unhealthy service doesn't blank out the whole integration
// report.
func (h *Harness) Deploy(ctx context.Context, services map[string]pipeline.ServiceInfo) ([]HealthStatus, error) {
	files := BuildComposeFileSet(services, h.traefikImage)
	if err := h.compose.Up(ctx, files); err != nil {
		return nil, fmt.Errorf("compose up: %w", err)
	}

	targets := make([]HealthTarget, 0, len(services))
	for id, svc := range services {
		if svc.HealthEndpoint == "" {
			continue
		}
		targets = append(targets, HealthTarget{
			ServiceID: id,
			URL:       fmt.Sprintf("http://localhost:%d%s", svc.Port, svc.HealthEndpoint),
		})
	}

	statuses, err := WaitForHealthy(ctx, h.httpClient, targets, h.waitOptions)
	if err != nil {
		return statuses, err
	}
	return statuses, nil
}

// Teardown brings the stack back down. Errors are returned but never
// block a subsequent run — the driver discards them and moves on.
func (h *Harness) Teardown(ctx context.Context, services map[string]pipeline.ServiceInfo) error {
	files := BuildComposeFileSet(services, h.traefikImage)
	return h.compose.Down(ctx, files)
}

// RunPostDeployTests runs the four post-deploy suites concurrently
// against the health probes Deploy collected and folds them into an
// IntegrationReport.
func RunPostDeployTests(ctx context.Context, services map[string]pipeline.ServiceInfo, statuses []HealthStatus) (pipeline.IntegrationReport, error) {
	contract, integrationSuite, dataFlow, boundary := HealthDerivedSuites(statuses)
	return RunSuites(ctx, services, contract, integrationSuite, dataFlow, boundary)
}

// BuildReport assembles the final IntegrationReport from deployment
// health and the test suite results.
func BuildReport(statuses []HealthStatus, suiteReport pipeline.IntegrationReport) pipeline.IntegrationReport {
	healthy := 0
	for _, s := range statuses {
		if s.Healthy {
			healthy++
		}
	}
	suiteReport.DeployedServiceCount = len(statuses)
	suiteReport.HealthyCount = healthy
	suiteReport.OverallHealthy = healthy == len(statuses) && len(statuses) > 0
	return suiteReport
}
