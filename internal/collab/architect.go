package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pipelineforge/orchestrator/internal/collab/rpc"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// ArchitectClient produces the service map and re-reviews it after
// contract registration. It is the only collaborator wrapped in a
// circuit breaker: an architect call is the slowest and most expensive
// of the four, so a string of failures should trip fast instead of
// burning retries against a dead process every phase.
type ArchitectClient struct {
	command string
	env     []string
	client  *Client[architectOutput]
}

type architectOutput struct {
	Services map[string]pipeline.ServiceInfo `json:"services"`
	Fallback bool                            `json:"fallback"`
}

// NewArchitectClient builds a client that spawns command (an MCP tool
// server binary) for each call, passing env as its entire environment.
func NewArchitectClient(command string, env []string) *ArchitectClient {
	return &ArchitectClient{
		command: command,
		env:     env,
		client:  NewClient[architectOutput](NewCircuitBreaker(DefaultCircuitBreakerConfig()), DefaultRetryPolicy()),
	}
}

// Design calls the architect's `design_services` tool against the PRD
// text, falling back to a single-service heuristic split when the
// architect is unreachable or its circuit is open.
func (a *ArchitectClient) Design(ctx context.Context, prdPath string) (map[string]pipeline.ServiceInfo, bool, error) {
	result, err := a.client.Call(ctx,
		func(ctx context.Context) (architectOutput, error) {
			return a.callDesign(ctx, prdPath)
		},
		func(ctx context.Context) (architectOutput, error) {
			return a.fallbackDesign(prdPath)
		},
	)
	if err != nil {
		return map[string]pipeline.ServiceInfo{}, true, nil
	}
	return result.Value.Services, result.Degraded, nil
}

// Review calls `review_services` with the registered contract ids, for
// the architect's post-registration sanity pass.
func (a *ArchitectClient) Review(ctx context.Context, services map[string]pipeline.ServiceInfo, registeredContracts []string) (map[string]pipeline.ServiceInfo, bool, error) {
	result, err := a.client.Call(ctx,
		func(ctx context.Context) (architectOutput, error) {
			return a.callReview(ctx, services, registeredContracts)
		},
		func(ctx context.Context) (architectOutput, error) {
			return architectOutput{Services: services, Fallback: true}, nil
		},
	)
	if err != nil {
		return services, true, nil
	}
	return result.Value.Services, result.Degraded, nil
}

func (a *ArchitectClient) callDesign(ctx context.Context, prdPath string) (architectOutput, error) {
	prd, err := os.ReadFile(prdPath)
	if err != nil {
		return architectOutput{}, fmt.Errorf("read PRD: %w", err)
	}
	session, err := rpc.Start(ctx, a.command, nil, a.env)
	if err != nil {
		return architectOutput{}, Transient(err)
	}
	defer session.Close()

	raw, err := session.Call("design_services", map[string]any{"prd": string(prd)})
	if err != nil {
		if _, ok := err.(*rpc.RPCError); ok {
			return architectOutput{}, err
		}
		return architectOutput{}, Transient(err)
	}
	var out architectOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return architectOutput{}, Transient(fmt.Errorf("decode design_services result: %w", err))
	}
	return out, nil
}

func (a *ArchitectClient) callReview(ctx context.Context, services map[string]pipeline.ServiceInfo, registeredContracts []string) (architectOutput, error) {
	session, err := rpc.Start(ctx, a.command, nil, a.env)
	if err != nil {
		return architectOutput{}, Transient(err)
	}
	defer session.Close()

	raw, err := session.Call("review_services", map[string]any{
		"services":             services,
		"registered_contracts": registeredContracts,
	})
	if err != nil {
		if _, ok := err.(*rpc.RPCError); ok {
			return architectOutput{}, err
		}
		return architectOutput{}, Transient(err)
	}
	var out architectOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return architectOutput{}, Transient(fmt.Errorf("decode review_services result: %w", err))
	}
	return out, nil
}

// fallbackDesign produces a single catch-all service named after the
// PRD's base filename, tagged as a degraded result. It is structurally
// valid but carries none of the architect's domain reasoning.
func (a *ArchitectClient) fallbackDesign(prdPath string) (architectOutput, error) {
	name := filepath.Base(prdPath)
	ext := filepath.Ext(name)
	name = name[:len(name)-len(ext)]
	if name == "" {
		name = "service"
	}
	return architectOutput{
		Fallback: true,
		Services: map[string]pipeline.ServiceInfo{
			name: {
				ServiceID: name,
				Domain:    "general",
				Stack:     pipeline.StackDescriptor{Language: "go"},
			},
		},
	}, nil
}
