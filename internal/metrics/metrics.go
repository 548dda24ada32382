// Package metrics provides the Prometheus counters for fetch, ingestion and
// reconciliation, and their export to a node-exporter textfile.
package metrics

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "escrutinio"

// Metrics owns a private registry so tests and commands never share state.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// FetchRequests counts fetch attempts by outcome (ok, retry, error).
	FetchRequests *prometheus.CounterVec
	// FetchRetries counts sleeps between attempts.
	FetchRetries prometheus.Counter
	// FetchDuration tracks per-attempt latency.
	FetchDuration prometheus.Histogram
	// IngestRecords counts extracted records by source and result (loaded, skipped).
	IngestRecords *prometheus.CounterVec
	// IngestRuns counts finalized runs by source and status.
	IngestRuns *prometheus.CounterVec
	// ReconcileWrites counts resolver/linker writes by engine and method.
	ReconcileWrites *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Total number of fetch attempts by outcome",
			},
			[]string{"outcome"},
		),
		FetchRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "retries_total",
				Help:      "Total number of fetch retries",
			},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "request_duration_seconds",
				Help:      "Duration of fetch attempts in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		IngestRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "records_total",
				Help:      "Total number of extracted records by source and result",
			},
			[]string{"source", "result"},
		),
		IngestRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "runs_total",
				Help:      "Total number of finalized ingestion runs by source and status",
			},
			[]string{"source", "status"},
		),
		ReconcileWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "writes_total",
				Help:      "Total number of reconciliation writes by engine and method",
			},
			[]string{"engine", "method"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FetchAttempt(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(seconds)
}

func (m *Metrics) FetchRetry() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

func (m *Metrics) Records(source string, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestRecords.WithLabelValues(source, result).Add(float64(n))
}

func (m *Metrics) Run(source string, status string) {
	if m == nil {
		return
	}
	m.IngestRuns.WithLabelValues(source, status).Inc()
}

func (m *Metrics) Write(engine string, method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReconcileWrites.WithLabelValues(engine, method).Add(float64(n))
}

// WriteTextfile exports the registry to path. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	path = strings.TrimSpace(path)
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
