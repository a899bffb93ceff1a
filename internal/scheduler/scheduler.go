package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/pipelineforge/orchestrator/internal/collab"
	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// RegistrationResult records, per service, the contract ids the
// contract engine (or its filesystem fallback) assigned during
// registration, plus the raw specs so builder materialization can
// write them into each service's contracts/ directory.
type RegistrationResult struct {
	provided map[string]map[string]map[string]any // service -> contractName -> spec
	ids      map[string]map[string]string         // service -> contractName -> id
	consumes map[string][]string                  // service -> consumed service names
	Degraded bool
}

func newRegistrationResult() RegistrationResult {
	return RegistrationResult{
		provided: map[string]map[string]map[string]any{},
		ids:      map[string]map[string]string{},
		consumes: map[string][]string{},
	}
}

// ContractsFor returns the named contract specs registered for service.
func (r RegistrationResult) ContractsFor(service string) map[string]map[string]any {
	return r.provided[service]
}

// ProvidedIDs returns the registered contract ids for service, in no
// particular order.
func (r RegistrationResult) ProvidedIDs(service string) []string {
	ids := make([]string, 0, len(r.ids[service]))
	for _, id := range r.ids[service] {
		ids = append(ids, id)
	}
	return ids
}

// ConsumedNames returns the names of services this service consumes
// contracts from.
func (r RegistrationResult) ConsumedNames(service string) []string {
	return r.consumes[service]
}

// RegisterAll registers one provided (openapi) contract stub for every
// service and records every other service as consumed, keeping ids for
// builder config generation. Each service falls back independently to
// a filesystem write; if that write also fails, RegisterAll stops and
// returns the error.
func RegisterAll(ctx context.Context, contracts *collab.ContractEngineClient, services map[string]pipeline.ServiceInfo) (RegistrationResult, error) {
	result := newRegistrationResult()

	for _, serviceID := range sortedServiceIDs(services) {
		svc := services[serviceID]
		stub := collab.ContractStub{
			Service: serviceID,
			Type:    "openapi",
			Spec: map[string]any{
				"info": map[string]any{"title": serviceID, "domain": svc.Domain},
			},
		}
		id, degraded, err := contracts.Register(ctx, stub)
		if err != nil {
			return result, fmt.Errorf("register contract for %s: %w", serviceID, err)
		}
		if degraded {
			result.Degraded = true
		}
		if result.provided[serviceID] == nil {
			result.provided[serviceID] = map[string]map[string]any{}
			result.ids[serviceID] = map[string]string{}
		}
		result.provided[serviceID]["provided"] = stub.Spec
		result.ids[serviceID]["provided"] = id

		for _, other := range otherServices(services, serviceID) {
			result.consumes[serviceID] = append(result.consumes[serviceID], other)
		}
	}
	return result, nil
}

func otherServices(services map[string]pipeline.ServiceInfo, exclude string) []string {
	var out []string
	for _, id := range sortedServiceIDs(services) {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// sortedServiceIDs returns every service id in services in deterministic,
// lexicographic order — contract registration and consumed-service
// ordering must not depend on Go's randomized map iteration order.
func sortedServiceIDs(services map[string]pipeline.ServiceInfo) []string {
	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
