package quality

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pipelineforge/orchestrator/internal/config"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// Gate runs the four quality layers in sequence, short-circuiting once
// a layer fails to promote.
type Gate struct {
	cfg      config.QualityGateConfig
	scanners []Scanner
}

// New builds a Gate from configuration; the scanner set is derived from
// cfg.Layer3Scanners, falling back to every known scanner if the list
// is empty.
func New(cfg config.QualityGateConfig) *Gate {
	scanners := AllScanners(cfg.MaxViolationsPerCategory)
	if len(cfg.Layer3Scanners) > 0 {
		allowed := map[string]bool{}
		for _, name := range cfg.Layer3Scanners {
			allowed[name] = true
		}
		filtered := scanners[:0]
		for _, s := range scanners {
			if allowed[s.Name()] {
				filtered = append(filtered, s)
			}
		}
		scanners = filtered
	}
	return &Gate{cfg: cfg, scanners: scanners}
}

// Run executes layers 1-4 against the given inputs, aggregating into a
// QualityGateReport. outputDir is the root under which each service's
// generated tree lives, for Layer 3's per-directory scan.
func (g *Gate) Run(ctx context.Context, builderResults map[string]pipeline.BuilderResult, integrationReport pipeline.IntegrationReport, outputDir string, services map[string]pipeline.ServiceInfo, graphNodes []ServiceGraphNode, attempt int) pipeline.QualityGateReport {
	report := pipeline.QualityGateReport{FixAttempts: attempt, MaxFixAttempts: g.cfg.MaxFixRetries}

	layer1 := timeLayer(func() pipeline.LayerResult { return RunLayer1(builderResults) })
	report.Layers = append(report.Layers, layer1)
	if !g.promotes(layer1) {
		report.Layers = append(report.Layers, skipRemaining(2, 3, 4)...)
		return g.finalize(report)
	}

	layer2 := timeLayer(func() pipeline.LayerResult { return RunLayer2(integrationReport) })
	report.Layers = append(report.Layers, layer2)
	if !g.promotes(layer2) {
		report.Layers = append(report.Layers, skipRemaining(3, 4)...)
		return g.finalize(report)
	}

	layer3 := timeLayer(func() pipeline.LayerResult { return g.runLayer3(ctx, outputDir, services) })
	report.Layers = append(report.Layers, layer3)
	if !g.promotes(layer3) {
		report.Layers = append(report.Layers, skipRemaining(4)...)
		return g.finalize(report)
	}

	layer4 := timeLayer(func() pipeline.LayerResult { return RunLayer4(graphNodes, services) })
	report.Layers = append(report.Layers, layer4)

	return g.finalize(report)
}

func timeLayer(run func() pipeline.LayerResult) pipeline.LayerResult {
	start := time.Now()
	result := run()
	result.Duration = time.Since(start)
	return result
}

func skipRemaining(layerIDs ...int) []pipeline.LayerResult {
	out := make([]pipeline.LayerResult, 0, len(layerIDs))
	for _, id := range layerIDs {
		out = append(out, pipeline.LayerResult{LayerID: id, Verdict: pipeline.VerdictSkipped})
	}
	return out
}

// promotes applies the gate's promotion rule: a layer promotes if its
// verdict is PASSED or PARTIAL, or if every one of its violations is
// strictly below the configured blocking severity.
func (g *Gate) promotes(layer pipeline.LayerResult) bool {
	if layer.Verdict == pipeline.VerdictPassed || layer.Verdict == pipeline.VerdictPartial {
		return true
	}
	blocking := pipeline.Severity(g.cfg.BlockingSeverity)
	if blocking == "" {
		blocking = pipeline.SeverityError
	}
	for _, v := range layer.Violations {
		if v.Severity.AtLeast(blocking) {
			return false
		}
	}
	for _, v := range layer.ContractViolations {
		if v.Severity.AtLeast(blocking) {
			return false
		}
	}
	return true
}

func (g *Gate) runLayer3(ctx context.Context, outputDir string, services map[string]pipeline.ServiceInfo) pipeline.LayerResult {
	layer := pipeline.LayerResult{LayerID: 3}

	var allViolations []pipeline.ScanViolation
	g2, _ := errgroup.WithContext(ctx)

	type cell struct{ serviceIdx, scannerIdx int }
	serviceIDs := make([]string, 0, len(services))
	for serviceID := range services {
		serviceIDs = append(serviceIDs, serviceID)
	}
	results := make([][]pipeline.ScanViolation, len(serviceIDs)*len(g.scanners))

	for si, serviceID := range serviceIDs {
		serviceDir := filepath.Join(outputDir, serviceID)
		for i, scanner := range g.scanners {
			slot := cell{si, i}
			scanner, serviceDir := scanner, serviceDir
			g2.Go(func() error {
				violations, err := scanner.Scan(serviceDir)
				if err != nil {
					return nil
				}
				results[slot.serviceIdx*len(g.scanners)+slot.scannerIdx] = violations
				return nil
			})
		}
	}
	_ = g2.Wait()

	for _, v := range results {
		allViolations = append(allViolations, v...)
	}
	layer.Violations = allViolations
	layer.TotalChecks = len(g.scanners) * len(services)

	blocking := 0
	for _, v := range allViolations {
		if v.Severity == pipeline.SeverityError {
			blocking++
		}
	}
	layer.PassedChecks = layer.TotalChecks - blocking

	switch {
	case blocking == 0 && len(allViolations) == 0:
		layer.Verdict = pipeline.VerdictPassed
	case blocking == 0:
		layer.Verdict = pipeline.VerdictPartial
	default:
		layer.Verdict = pipeline.VerdictFailed
	}
	return layer
}

func (g *Gate) finalize(report pipeline.QualityGateReport) pipeline.QualityGateReport {
	overall := pipeline.VerdictPassed
	for _, layer := range report.Layers {
		if layer.LayerID == 4 {
			continue // advisory only, never factors into the overall verdict
		}
		overall = pipeline.Worst(overall, layer.Verdict)
		report.TotalViolationCount += len(layer.Violations) + len(layer.ContractViolations)
		for _, v := range layer.Violations {
			if v.Severity == pipeline.SeverityError {
				report.BlockingViolationCount++
			}
		}
		for _, v := range layer.ContractViolations {
			if v.Severity == pipeline.SeverityError {
				report.BlockingViolationCount++
			}
		}
	}
	report.OverallVerdict = overall
	return report
}
