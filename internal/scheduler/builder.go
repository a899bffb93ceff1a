/*
Package scheduler launches one builder subprocess per service produced
by the architect, bounding concurrency with a semaphore-backed errgroup
the way the enrichment pipeline's priority groups do, and registers each
service's contracts with the contract engine (or the filesystem) before
any builder is spawned.
*/
package scheduler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pipelineforge/orchestrator/internal/atomicfile"
	"github.com/pipelineforge/orchestrator/internal/collab"
	"github.com/pipelineforge/orchestrator/internal/config"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/pipeline/shutdown"
)

// BuilderConfigDoc is the JSON document written into a builder's input
// directory alongside the PRD copy and the contracts/ subdirectory.
type BuilderConfigDoc struct {
	ServiceID       string                 `json:"service_id"`
	Domain          string                 `json:"domain"`
	Stack           pipeline.StackDescriptor `json:"stack"`
	Port            int                    `json:"port"`
	Entities        []string               `json:"entities"`
	StateMachines   []string               `json:"state_machines"`
	Provided        []string               `json:"provided_contracts"`
	Consumed        []string               `json:"consumed_contracts"`
	OutputPath      string                 `json:"output_path"`
	GraphRAGContext string                 `json:"graph_rag_context"`
}

// BuilderModule is the command used to launch a builder subprocess, and
// the depth/no-interview flags it receives on every invocation.
type BuilderModule struct {
	Command string
	Depth   config.Depth
}

// Scheduler runs the registration phase followed by bounded-concurrency
// builder execution for every service in a run.
type Scheduler struct {
	module      BuilderModule
	maxConcur   int
	timeout     time.Duration
	outputDir   string
	coordinator *shutdown.Coordinator
	contracts   *collab.ContractEngineClient
	graphRAG    *collab.GraphRAGClient
}

// New builds a Scheduler.
func New(module BuilderModule, cfg config.BuilderConfig, outputDir string, coordinator *shutdown.Coordinator, contracts *collab.ContractEngineClient, graphRAG *collab.GraphRAGClient) *Scheduler {
	maxConcur := cfg.MaxConcurrent
	if maxConcur <= 0 {
		maxConcur = 3
	}
	return &Scheduler{
		module:      module,
		maxConcur:   maxConcur,
		timeout:     cfg.TimeoutPerBuilder,
		outputDir:   outputDir,
		coordinator: coordinator,
		contracts:   contracts,
		graphRAG:    graphRAG,
	}
}

// RunAll materializes input directories and runs one builder subprocess
// per service, bounded to maxConcur concurrent builders. It returns once
// every builder has either finished, timed out, or been skipped due to
// a shutdown request. A failing builder never aborts the others; the
// caller decides whether the overall phase succeeded.
func (s *Scheduler) RunAll(ctx context.Context, prdPath string, services map[string]pipeline.ServiceInfo, registered RegistrationResult) (map[string]pipeline.BuilderResult, error) {
	results := make(map[string]pipeline.BuilderResult, len(services))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.maxConcur)

	for id, svc := range services {
		id, svc := id, svc
		if s.coordinator != nil && s.coordinator.ShouldStop() {
			break
		}

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gCtx.Done():
				return nil
			}
			defer func() { <-sem }()

			if s.coordinator != nil && s.coordinator.ShouldStop() {
				return nil
			}

			result := s.runOne(gCtx, prdPath, id, svc, registered)
			mu.Lock()
			results[id] = result
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}

func (s *Scheduler) runOne(ctx context.Context, prdPath, serviceID string, svc pipeline.ServiceInfo, registered RegistrationResult) pipeline.BuilderResult {
	inputDir := filepath.Join(s.outputDir, serviceID)
	if err := s.materialize(ctx, inputDir, prdPath, serviceID, svc, registered); err != nil {
		return pipeline.BuilderResult{ServiceID: serviceID, Success: false, Error: fmt.Sprintf("materialize input dir: %v", err)}
	}

	contextPath := filepath.Join(inputDir, "context.md")

	runCtx, cancel := context.WithTimeout(ctx, s.effectiveTimeout())
	defer cancel()

	args := []string{prdPath, "--depth", string(s.module.Depth), "--no-interview", "--context-file", contextPath}
	cmd := exec.CommandContext(runCtx, s.module.Command, args...)
	cmd.Dir = inputDir
	cmd.Env = collab.AllowedEnv(os.Getenv("PATH"), nil)
	// The timeout branch below shuts the process down through terminate;
	// the context's own cancel must not kill it first.
	cmd.Cancel = func() error { return nil }

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		return pipeline.BuilderResult{ServiceID: serviceID, Success: false, Error: fmt.Sprintf("start builder: %v", err)}
	}

	go drain(stdout)
	go drain(stderr)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil && runCtx.Err() != nil {
			return pipeline.BuilderResult{ServiceID: serviceID, Success: false, Error: "timeout"}
		}
	case <-runCtx.Done():
		s.terminate(cmd)
		<-waitErr
		return pipeline.BuilderResult{ServiceID: serviceID, Success: false, Error: "timeout"}
	}

	return s.readState(inputDir, serviceID)
}

// effectiveTimeout falls back to 1800s when unset, matching the default
// config value.
func (s *Scheduler) effectiveTimeout() time.Duration {
	if s.timeout <= 0 {
		return 1800 * time.Second
	}
	return s.timeout
}

// terminate sends os.Interrupt first and force-kills after a 5s grace
// period, the same graceful-then-force shutdown sequence used for
// `docker compose` commands.
func (s *Scheduler) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Signal(os.Interrupt)
	done := make(chan struct{})
	go func() {
		cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
	}
}

func drain(r io.Reader) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// discarded; a real deployment would forward to structured logging
	}
}

func (s *Scheduler) readState(inputDir, serviceID string) pipeline.BuilderResult {
	statePath := filepath.Join(inputDir, "STATE.json")
	data, err := os.ReadFile(statePath)
	if err != nil {
		return pipeline.BuilderResult{ServiceID: serviceID, Success: false, Error: fmt.Sprintf("read STATE.json: %v", err)}
	}
	var result pipeline.BuilderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return pipeline.BuilderResult{ServiceID: serviceID, Success: false, Error: fmt.Sprintf("parse STATE.json: %v", err)}
	}
	result.ServiceID = serviceID
	return result
}

func (s *Scheduler) materialize(ctx context.Context, inputDir, prdPath, serviceID string, svc pipeline.ServiceInfo, registered RegistrationResult) error {
	if err := os.MkdirAll(filepath.Join(inputDir, "contracts"), 0o755); err != nil {
		return err
	}

	prd, err := os.ReadFile(prdPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(inputDir, "prd_input.md"), prd, 0o644); err != nil {
		return err
	}

	for name, contract := range registered.ContractsFor(serviceID) {
		path := filepath.Join(inputDir, "contracts", name+".json")
		if err := atomicfile.WriteJSON(path, contract); err != nil {
			return err
		}
	}

	contextBlock, _, err := s.graphRAG.Context(ctx, svc, registered.ConsumedNames(serviceID))
	if err != nil {
		contextBlock = collab.SynthesizeContext(svc, registered.ConsumedNames(serviceID))
	}
	if err := os.WriteFile(filepath.Join(inputDir, "context.md"), []byte(contextBlock), 0o644); err != nil {
		return err
	}

	doc := BuilderConfigDoc{
		ServiceID:       serviceID,
		Domain:          svc.Domain,
		Stack:           svc.Stack,
		Port:            svc.Port,
		Provided:        registered.ProvidedIDs(serviceID),
		Consumed:        registered.ConsumedNames(serviceID),
		OutputPath:      inputDir,
		GraphRAGContext: contextBlock,
	}
	return atomicfile.WriteJSON(filepath.Join(inputDir, "builder_config.json"), doc)
}
