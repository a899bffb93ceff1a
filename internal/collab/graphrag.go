package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pipelineforge/orchestrator/internal/collab/rpc"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

type contextResult struct {
	Context  string `json:"context"`
	Fallback bool   `json:"fallback"`
}

// GraphRAGClient obtains a cross-service context block for a builder's
// graph_rag_context field. It does not register events in the knowledge
// graph; EventNodeID below only computes the node id an event would use.
type GraphRAGClient struct {
	command string
	env     []string
	client  *Client[contextResult]
}

// NewGraphRAGClient builds a client.
func NewGraphRAGClient(command string, env []string) *GraphRAGClient {
	return &GraphRAGClient{
		command: command,
		env:     env,
		client:  NewClient[contextResult](nil, DefaultRetryPolicy()),
	}
}

// Context returns the markdown context block for service, consulting the
// graph-RAG tool server first and falling back to a locally synthesized
// block built from the service's own descriptor and the names of the
// services it consumes.
func (g *GraphRAGClient) Context(ctx context.Context, service pipeline.ServiceInfo, consumes []string) (string, bool, error) {
	result, err := g.client.Call(ctx,
		func(ctx context.Context) (contextResult, error) {
			return g.callContext(ctx, service, consumes)
		},
		func(ctx context.Context) (contextResult, error) {
			return contextResult{Context: SynthesizeContext(service, consumes), Fallback: true}, nil
		},
	)
	if err != nil {
		return SynthesizeContext(service, consumes), true, nil
	}
	return result.Value.Context, result.Degraded, nil
}

func (g *GraphRAGClient) callContext(ctx context.Context, service pipeline.ServiceInfo, consumes []string) (contextResult, error) {
	session, err := rpc.Start(ctx, g.command, nil, g.env)
	if err != nil {
		return contextResult{}, Transient(err)
	}
	defer session.Close()

	raw, err := session.Call("service_context", map[string]any{
		"service":  service,
		"consumes": consumes,
	})
	if err != nil {
		if _, ok := err.(*rpc.RPCError); ok {
			return contextResult{}, err
		}
		return contextResult{}, Transient(err)
	}
	var out contextResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return contextResult{}, Transient(fmt.Errorf("decode service_context result: %w", err))
	}
	return out, nil
}

// EventNodeID returns the stable node id for an event named name:
// event::<name>, never event::<service>::<name>. Two services that
// publish and subscribe to the same event name must converge on one
// graph node regardless of which builder registered it first.
func EventNodeID(name string) string {
	return "event::" + name
}

// SynthesizeContext builds the markdown fallback block embedded in a
// builder's graph_rag_context field: domain, stack, and the names of
// services this one consumes from.
func SynthesizeContext(service pipeline.ServiceInfo, consumes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Service Context: %s\n\n", service.ServiceID)
	fmt.Fprintf(&b, "- Domain: %s\n", service.Domain)
	fmt.Fprintf(&b, "- Stack: %s/%s/%s\n", service.Stack.Language, service.Stack.Framework, service.Stack.Database)
	if len(consumes) > 0 {
		b.WriteString("- Consumes:\n")
		for _, c := range consumes {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	} else {
		b.WriteString("- Consumes: none\n")
	}
	return b.String()
}
