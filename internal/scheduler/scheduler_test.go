package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/collab"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestRegisterAll_FallsBackToFilesystemPerService(t *testing.T) {
	registryDir := t.TempDir()
	contracts := collab.NewContractEngineClient("", nil, registryDir) // unreachable -> filesystem fallback

	services := map[string]pipeline.ServiceInfo{
		"user-service":  {ServiceID: "user-service", Domain: "identity"},
		"order-service": {ServiceID: "order-service", Domain: "commerce"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result, err := RegisterAll(ctx, contracts, services)
	require.NoError(t, err)
	require.True(t, result.Degraded)

	for _, id := range []string{"user-service", "order-service"} {
		ids := result.ProvidedIDs(id)
		require.Len(t, ids, 1)
		require.FileExists(t, ids[0])

		var spec map[string]any
		raw, readErr := os.ReadFile(ids[0])
		require.NoError(t, readErr)
		require.NoError(t, json.Unmarshal(raw, &spec))
	}
}

func TestRegisterAll_RecordsConsumedServiceNames(t *testing.T) {
	registryDir := t.TempDir()
	contracts := collab.NewContractEngineClient("", nil, registryDir)

	services := map[string]pipeline.ServiceInfo{
		"user-service":  {ServiceID: "user-service"},
		"order-service": {ServiceID: "order-service"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result, err := RegisterAll(ctx, contracts, services)
	require.NoError(t, err)

	require.Equal(t, []string{"order-service"}, result.ConsumedNames("user-service"))
	require.Equal(t, []string{"user-service"}, result.ConsumedNames("order-service"))
}

func TestContractsFor_ReturnsRegisteredSpecsByName(t *testing.T) {
	result := newRegistrationResult()
	result.provided["user-service"] = map[string]map[string]any{
		"provided": {"info": map[string]any{"title": "user-service"}},
	}
	specs := result.ContractsFor("user-service")
	require.Contains(t, specs, "provided")
}

func TestOtherServices_ExcludesGivenService(t *testing.T) {
	services := map[string]pipeline.ServiceInfo{
		"a": {}, "b": {}, "c": {},
	}
	others := otherServices(services, "b")
	require.Equal(t, []string{"a", "c"}, others)
	require.NotContains(t, others, "b")
}

func TestSortedServiceIDs_IsDeterministicRegardlessOfMapIterationOrder(t *testing.T) {
	services := map[string]pipeline.ServiceInfo{
		"zebra-service": {},
		"alpha-service": {},
		"mike-service":  {},
		"oscar-service": {},
	}
	want := []string{"alpha-service", "mike-service", "oscar-service", "zebra-service"}

	for i := 0; i < 20; i++ {
		require.Equal(t, want, sortedServiceIDs(services), "iteration %d", i)
	}
}

func TestRegisterAll_RegistersServicesInSortedOrder(t *testing.T) {
	registryDir := t.TempDir()
	contracts := collab.NewContractEngineClient("", nil, registryDir)

	services := map[string]pipeline.ServiceInfo{
		"zebra-service": {ServiceID: "zebra-service"},
		"alpha-service": {ServiceID: "alpha-service"},
		"mike-service":  {ServiceID: "mike-service"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result, err := RegisterAll(ctx, contracts, services)
	require.NoError(t, err)

	require.Equal(t, []string{"mike-service", "zebra-service"}, result.ConsumedNames("alpha-service"))
	require.Equal(t, []string{"alpha-service", "zebra-service"}, result.ConsumedNames("mike-service"))
	require.Equal(t, []string{"alpha-service", "mike-service"}, result.ConsumedNames("zebra-service"))
}
