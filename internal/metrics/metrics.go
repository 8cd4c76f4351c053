// Package metrics exposes Prometheus collectors for pipeline, artifact,
// and cache activity. The gateway serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "optbrief"

// Metrics bundles all collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	// RunsTotal counts completed runs by trigger and final status.
	RunsTotal *prometheus.CounterVec

	// RunDuration observes wall time of completed runs.
	RunDuration prometheus.Histogram

	// StepDuration observes wall time per executed step.
	StepDuration *prometheus.HistogramVec

	// StepFailures counts failed steps by name.
	StepFailures *prometheus.CounterVec

	// ArtifactFiles counts files archived.
	ArtifactFiles prometheus.Counter

	// ArtifactBytes counts bytes archived.
	ArtifactBytes prometheus.Counter

	// CacheRestores counts cache restore attempts by result (hit or miss).
	CacheRestores *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including the standard Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by trigger and final status.",
		}, []string{"trigger", "status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of executed pipeline steps.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"step"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Failed pipeline steps by name.",
		}, []string{"step"}),
		ArtifactFiles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_files_total",
			Help:      "Files archived into artifact sets.",
		}),
		ArtifactBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes archived into artifact sets.",
		}),
		CacheRestores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_restores_total",
			Help:      "Cache restore attempts by result.",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
