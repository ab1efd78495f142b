// Package metrics records pipeline and memory counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the researcher collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	steps    *prometheus.HistogramVec
	memory   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "researcher_runs_total",
			Help: "Pipeline runs by resolved strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "researcher_step_duration_seconds",
			Help:    "Duration of each pipeline step.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		memory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "researcher_memory_ops_total",
			Help: "Semantic memory operations by kind and outcome.",
		}, []string{"op", "outcome"}),
	}
	r.registry.MustRegister(r.runs, r.steps, r.memory)
	r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveRun(strategy string, err error) {
	if r == nil {
		return
	}
	if strategy == "" {
		strategy = "unknown"
	}
	r.runs.WithLabelValues(strategy, outcome(err)).Inc()
}

func (r *Recorder) ObserveStep(agent string, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(agent).Observe(d.Seconds())
}

func (r *Recorder) ObserveMemory(op string, err error) {
	if r == nil {
		return
	}
	r.memory.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
