// Package metrics exposes Prometheus collectors for download runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task results recorded in loomdl_tasks_total.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Metrics holds Prometheus counters and gauges for the download engine.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	tasksTotal      *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	retriesTotal    prometheus.Counter
	resolveFailures *prometheus.CounterVec
	activeTasks     prometheus.Gauge
}

// New creates and registers the engine's metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	tasksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loomdl_tasks_total",
		Help: "Total number of download tasks by result",
	}, []string{"result"})
	bytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loomdl_bytes_downloaded_total",
		Help: "Total number of media bytes written by progressive transfers",
	})
	retriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loomdl_retries_total",
		Help: "Total number of retried stream transfer attempts",
	})
	resolveFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loomdl_resolve_failures_total",
		Help: "Total number of failed share-page resolutions by kind",
	}, []string{"kind"})
	activeTasks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loomdl_active_tasks",
		Help: "Number of download tasks currently running",
	})

	registry.MustRegister(
		tasksTotal,
		bytesTotal,
		retriesTotal,
		resolveFailures,
		activeTasks,
	)

	return &Metrics{
		registry:        registry,
		tasksTotal:      tasksTotal,
		bytesTotal:      bytesTotal,
		retriesTotal:    retriesTotal,
		resolveFailures: resolveFailures,
		activeTasks:     activeTasks,
	}
}

// IncTasks counts one finished task with the given result.
func (m *Metrics) IncTasks(result string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(result).Inc()
}

// AddBytes adds n downloaded bytes.
func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTotal.Add(float64(n))
}

// IncRetries counts one retried attempt.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// IncResolveFailures counts one failed resolution.
func (m *Metrics) IncResolveFailures(kind string) {
	if m == nil {
		return
	}
	m.resolveFailures.WithLabelValues(kind).Inc()
}

// TaskStarted increments the active task gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.activeTasks.Inc()
}

// TaskFinished decrements the active task gauge.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.activeTasks.Dec()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
