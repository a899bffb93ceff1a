/*
Package integration deploys the services a run's builders produced into
a throwaway container stack, waits for each to pass its healthcheck, and
runs the suite of API/contract/flow/boundary tests against the live
stack. Multi-file Compose layering (base + generated services + reverse
proxy + overrides) follows the same pattern as a typical compose
executor.
*/
package integration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// ComposeFileSet is the layered set of Compose documents the harness
// writes before bringing the stack up: one base file with shared
// infrastructure, one generated file per service, a reverse-proxy file,
// and an optional overrides file.
type ComposeFileSet struct {
	Base       string
	Services   map[string]string
	ReverseProxy string
	Overrides  string
}

// BuildComposeFileSet renders the layered Compose YAML for a run. Each
// document is plain text so the integration harness can hand it
// straight to a compose binary without an intermediate marshal step.
func BuildComposeFileSet(services map[string]pipeline.ServiceInfo, traefikImage string) ComposeFileSet {
	set := ComposeFileSet{
		Base:         renderBase(),
		Services:     map[string]string{},
		ReverseProxy: renderReverseProxy(services, traefikImage),
	}
	for id, svc := range services {
		set.Services[id] = renderService(id, svc)
	}
	return set
}

func renderBase() string {
	return "version: \"3.9\"\nnetworks:\n  pipelineforge:\n    driver: bridge\n"
}

func renderService(id string, svc pipeline.ServiceInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "version: \"3.9\"\nservices:\n  %s:\n", id)
	fmt.Fprintf(&b, "    build: ./%s\n", id)
	fmt.Fprintf(&b, "    ports:\n      - \"%d:%d\"\n", svc.Port, svc.Port)
	fmt.Fprintf(&b, "    networks:\n      - pipelineforge\n")
	if svc.HealthEndpoint != "" {
		fmt.Fprintf(&b, "    healthcheck:\n      test: [\"CMD\", \"curl\", \"-f\", \"http://localhost:%d%s\"]\n", svc.Port, svc.HealthEndpoint)
		b.WriteString("      interval: 5s\n      timeout: 3s\n      retries: 5\n")
	}
	return b.String()
}

func renderReverseProxy(services map[string]pipeline.ServiceInfo, traefikImage string) string {
	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "version: \"3.9\"\nservices:\n  reverse-proxy:\n    image: %s\n", traefikImage)
	b.WriteString("    command:\n      - \"--providers.docker=true\"\n")
	b.WriteString("    ports:\n      - \"80:80\"\n    networks:\n      - pipelineforge\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "    # routes to %s\n", id)
	}
	return b.String()
}
