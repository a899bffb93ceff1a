package collab

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFallbackRegister_WritesSpecToRegistryDir(t *testing.T) {
	dir := t.TempDir()
	c := NewContractEngineClient("", nil, dir)

	stub := ContractStub{Service: "user-service", Type: "openapi", Spec: map[string]any{"openapi": "3.0.0"}}
	result, err := c.fallbackRegister(stub)
	require.NoError(t, err)
	require.True(t, result.Fallback)
	require.Equal(t, filepath.Join(dir, "user-service-openapi.json"), result.ContractID)

	data, err := os.ReadFile(result.ContractID)
	require.NoError(t, err)
	var spec map[string]any
	require.NoError(t, json.Unmarshal(data, &spec))
	require.Equal(t, "3.0.0", spec["openapi"])
}

func TestRegister_UnreachableContractEngineDegradesToFilesystemFallback(t *testing.T) {
	dir := t.TempDir()
	c := NewContractEngineClient("", nil, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	stub := ContractStub{Service: "order-service", Type: "asyncapi", Spec: map[string]any{}}
	id, degraded, err := c.Register(ctx, stub)
	require.NoError(t, err)
	require.True(t, degraded)
	require.FileExists(t, id)
}
