package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/pipelineforge/orchestrator/internal/collab/rpc"
)

// Symbol is one top-level declaration discovered in a source file.
type Symbol struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Line int    `json:"line"`
}

type symbolsResult struct {
	Symbols  []Symbol `json:"symbols"`
	Fallback bool     `json:"fallback"`
}

// CodeIntelClient answers "what symbols does this file define"; the
// driver uses it to list a builder's existing symbols in the fix pass's
// GENERATE context. Its primary path
// calls the codebase-intelligence tool server; its fallback parses the
// file directly with tree-sitter, which needs no running process and
// never fails to produce *some* structural answer for supported
// languages.
type CodeIntelClient struct {
	command string
	env     []string
	client  *Client[symbolsResult]
}

// NewCodeIntelClient builds a client.
func NewCodeIntelClient(command string, env []string) *CodeIntelClient {
	return &CodeIntelClient{
		command: command,
		env:     env,
		client:  NewClient[symbolsResult](nil, DefaultRetryPolicy()),
	}
}

// Symbols returns the declarations in the file at path.
func (c *CodeIntelClient) Symbols(ctx context.Context, path string) ([]Symbol, bool, error) {
	result, err := c.client.Call(ctx,
		func(ctx context.Context) (symbolsResult, error) {
			return c.callSymbols(ctx, path)
		},
		func(ctx context.Context) (symbolsResult, error) {
			return c.fallbackSymbols(path)
		},
	)
	if err != nil {
		return nil, true, err
	}
	return result.Value.Symbols, result.Degraded, nil
}

func (c *CodeIntelClient) callSymbols(ctx context.Context, path string) (symbolsResult, error) {
	session, err := rpc.Start(ctx, c.command, nil, c.env)
	if err != nil {
		return symbolsResult{}, Transient(err)
	}
	defer session.Close()

	raw, err := session.Call("extract_symbols", map[string]any{"path": path})
	if err != nil {
		if _, ok := err.(*rpc.RPCError); ok {
			return symbolsResult{}, err
		}
		return symbolsResult{}, Transient(err)
	}
	var out symbolsResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return symbolsResult{}, Transient(fmt.Errorf("decode extract_symbols result: %w", err))
	}
	return out, nil
}

// fallbackSymbols parses Go source directly with tree-sitter. Non-Go
// files degrade to an empty symbol list rather than erroring — the
// fix-pass engine treats an empty result as "no structural signal",
// not as a failure.
func (c *CodeIntelClient) fallbackSymbols(path string) (symbolsResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return symbolsResult{}, fmt.Errorf("read %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return symbolsResult{Fallback: true}, nil
	}
	defer tree.Close()

	var symbols []Symbol
	root := tree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		kind := declarationKind(node.Type())
		if kind == "" {
			continue
		}
		name := declarationName(node, content)
		if name == "" {
			continue
		}
		symbols = append(symbols, Symbol{
			Kind: kind,
			Name: name,
			Line: int(node.StartPoint().Row) + 1,
		})
	}
	return symbolsResult{Symbols: symbols, Fallback: true}, nil
}

func declarationKind(nodeType string) string {
	switch nodeType {
	case "function_declaration":
		return "func"
	case "method_declaration":
		return "method"
	case "type_declaration":
		return "type"
	default:
		return ""
	}
}

func declarationName(node *sitter.Node, source []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "type_spec" {
				if n := child.ChildByFieldName("name"); n != nil {
					return n.Content(source)
				}
			}
		}
		return ""
	}
	return nameNode.Content(source)
}
