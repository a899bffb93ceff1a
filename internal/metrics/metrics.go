/*
Package metrics exposes the pipeline driver's running state as
Prometheus gauges and counters, grounded on the codebase-intelligence
service's eval/telemetry Prometheus sink (same registration-once,
namespace/subsystem shape, generalized from per-eval latency buckets to
per-phase pipeline counters).
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// Recorder wraps the collectors a pipelinectl run publishes. A nil
// *Recorder is safe to call every method on — metrics are optional
// instrumentation, never a load-bearing dependency for phase handlers.
type Recorder struct {
	phaseTransitions *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	builderResults   *prometheus.CounterVec
	totalCost        prometheus.Gauge
	qualityVerdict   *prometheus.CounterVec
	fixPassCount     prometheus.Gauge
}

// New registers the pipeline's collectors against reg. Pass
// prometheus.NewRegistry() for an isolated registry (as this package's
// tests do) or prometheus.DefaultRegisterer for a real process.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipelinectl",
			Subsystem: "driver",
			Name:      "phase_transitions_total",
			Help:      "Count of phase handler dispatches, by dispatched phase.",
		}, []string{"phase"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipelinectl",
			Subsystem: "driver",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each phase handler invocation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		builderResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipelinectl",
			Subsystem: "scheduler",
			Name:      "builder_results_total",
			Help:      "Count of builder subprocess outcomes, by status.",
		}, []string{"status"}),
		totalCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipelinectl",
			Subsystem: "cost",
			Name:      "total_dollars",
			Help:      "Accumulated cost for the current run.",
		}),
		qualityVerdict: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipelinectl",
			Subsystem: "quality_gate",
			Name:      "verdicts_total",
			Help:      "Count of quality-gate attempts, by overall verdict.",
		}, []string{"verdict"}),
		fixPassCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipelinectl",
			Subsystem: "fixpass",
			Name:      "passes_recorded",
			Help:      "Number of fix passes recorded on the current run.",
		}),
	}
	reg.MustRegister(r.phaseTransitions, r.phaseDuration, r.builderResults, r.totalCost, r.qualityVerdict, r.fixPassCount)
	return r
}

func (r *Recorder) ObservePhase(p pipeline.Phase, seconds float64) {
	if r == nil {
		return
	}
	r.phaseTransitions.WithLabelValues(string(p)).Inc()
	r.phaseDuration.WithLabelValues(string(p)).Observe(seconds)
}

func (r *Recorder) ObserveBuilderResult(status pipeline.BuilderStatus) {
	if r == nil {
		return
	}
	r.builderResults.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) SetTotalCost(dollars float64) {
	if r == nil {
		return
	}
	r.totalCost.Set(dollars)
}

func (r *Recorder) ObserveQualityVerdict(v pipeline.Verdict) {
	if r == nil {
		return
	}
	r.qualityVerdict.WithLabelValues(string(v)).Inc()
}

func (r *Recorder) SetFixPassCount(n int) {
	if r == nil {
		return
	}
	r.fixPassCount.Set(float64(n))
}
