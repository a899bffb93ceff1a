package integration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestBuildComposeFileSet_OneFilePerServicePlusSharedLayers(t *testing.T) {
	services := map[string]pipeline.ServiceInfo{
		"user-service": {Port: 8080, HealthEndpoint: "/healthz"},
		"order-service": {Port: 8081},
	}

	set := BuildComposeFileSet(services, "traefik:v3.0")

	require.Contains(t, set.Base, "pipelineforge")
	require.Len(t, set.Services, 2)
	require.Contains(t, set.Services["user-service"], "8080:8080")
	require.Contains(t, set.Services["user-service"], "healthcheck")
	require.Contains(t, set.Services["user-service"], "/healthz")
	require.NotContains(t, set.Services["order-service"], "healthcheck")
	require.Contains(t, set.ReverseProxy, "traefik:v3.0")
}

func TestRenderService_OmitsHealthcheckWhenEndpointMissing(t *testing.T) {
	out := renderService("order-service", pipeline.ServiceInfo{Port: 9000})
	require.Contains(t, out, "order-service")
	require.NotContains(t, out, "healthcheck")
}

func TestRenderReverseProxy_ListsServicesInSortedOrder(t *testing.T) {
	services := map[string]pipeline.ServiceInfo{
		"zeta-service": {},
		"alpha-service": {},
	}
	out := renderReverseProxy(services, "traefik:v3.0")
	alphaIdx := indexOf(out, "alpha-service")
	zetaIdx := indexOf(out, "zeta-service")
	require.Greater(t, alphaIdx, -1)
	require.Greater(t, zetaIdx, -1)
	require.Less(t, alphaIdx, zetaIdx)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
