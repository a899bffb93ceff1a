package collab

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pipelineforge/orchestrator/internal/atomicfile"
	"github.com/pipelineforge/orchestrator/internal/collab/rpc"
)

// ContractStub is the provided-or-consumed contract shape the scheduler
// hands to the contract engine for registration.
type ContractStub struct {
	Service string         `json:"service"`
	Type    string         `json:"type"` // "openapi" or "asyncapi"
	Spec    map[string]any `json:"spec"`
}

type registerResult struct {
	ContractID string `json:"contract_id"`
	Fallback   bool   `json:"fallback"`
}

// ContractEngineClient registers contract stubs and falls back to
// writing them straight to the registry directory on the filesystem
// when the contract engine tool server is unreachable.
type ContractEngineClient struct {
	command      string
	env          []string
	registryDir  string
	client       *Client[registerResult]
}

// NewContractEngineClient builds a client. registryDir is where
// fallback contract files are written (<registry_dir>/<service>-<type>.json).
func NewContractEngineClient(command string, env []string, registryDir string) *ContractEngineClient {
	return &ContractEngineClient{
		command:     command,
		env:         env,
		registryDir: registryDir,
		client:      NewClient[registerResult](nil, DefaultRetryPolicy()),
	}
}

// Register attempts create_contract, falling back to a filesystem write
// at <registry_dir>/<service>-<type>.json. The filesystem fallback uses
// the written file's path as its id; if that write also fails, the id is
// empty and the error is returned.
func (c *ContractEngineClient) Register(ctx context.Context, stub ContractStub) (string, bool, error) {
	result, err := c.client.Call(ctx,
		func(ctx context.Context) (registerResult, error) {
			return c.callRegister(ctx, stub)
		},
		func(ctx context.Context) (registerResult, error) {
			return c.fallbackRegister(stub)
		},
	)
	if err != nil {
		return "", true, err
	}
	return result.Value.ContractID, result.Degraded, nil
}

func (c *ContractEngineClient) callRegister(ctx context.Context, stub ContractStub) (registerResult, error) {
	session, err := rpc.Start(ctx, c.command, nil, c.env)
	if err != nil {
		return registerResult{}, Transient(err)
	}
	defer session.Close()

	raw, err := session.Call("create_contract", stub)
	if err != nil {
		if _, ok := err.(*rpc.RPCError); ok {
			return registerResult{}, err
		}
		return registerResult{}, Transient(err)
	}
	var out registerResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return registerResult{}, Transient(fmt.Errorf("decode create_contract result: %w", err))
	}
	return out, nil
}

func (c *ContractEngineClient) fallbackRegister(stub ContractStub) (registerResult, error) {
	path := fmt.Sprintf("%s/%s-%s.json", c.registryDir, stub.Service, stub.Type)
	if err := atomicfile.WriteJSON(path, stub.Spec); err != nil {
		return registerResult{}, fmt.Errorf("write fallback contract: %w", err)
	}
	return registerResult{ContractID: path, Fallback: true}, nil
}
