// Package metrics exposes Prometheus instrumentation for merge runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "csvmerge"

// Row outcomes counted by RowsTotal.
const (
	OutcomeRead     = "read"
	OutcomeAccepted = "accepted"
	OutcomeNoKey    = "no_key"
	OutcomeFiltered = "filtered"
	OutcomeSkipped  = "skipped"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	bytesTotal    prometheus.Counter
	sourcesTotal  prometheus.Counter
	runDuration   prometheus.Histogram
	outputRows    prometheus.Histogram
	activeRuns    prometheus.Gauge
	rejectedTotal prometheus.Counter
}

// New registers the merge collectors, plus Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Merge runs by final status",
		}, []string{"status"}),
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Input rows by outcome",
		}, []string{"outcome"}),
		bytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Bytes of CSV input read",
		}),
		sourcesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Input sources merged",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time taken by a merge run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		outputRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_rows",
			Help:      "Records produced per merge run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Merge runs currently in progress",
		}),
		rejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_rejected_total",
			Help:      "Merge runs rejected because the server was at capacity",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a run in progress. Call the returned func when it ends.
func (m *Metrics) RunStarted() func() {
	m.activeRuns.Inc()
	return m.activeRuns.Dec
}

// RunFinished records the outcome of a run.
func (m *Metrics) RunFinished(status string, d time.Duration, rowsOut int) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	if status == "succeeded" {
		m.outputRows.Observe(float64(rowsOut))
	}
}

// RunRejected counts a run turned away by the limiter.
func (m *Metrics) RunRejected() { m.rejectedTotal.Inc() }

// AddRows adds n rows to the given outcome.
func (m *Metrics) AddRows(outcome string, n int) {
	if n > 0 {
		m.rowsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// AddSource counts one merged source of the given size.
func (m *Metrics) AddSource(bytes int64) {
	m.sourcesTotal.Inc()
	if bytes > 0 {
		m.bytesTotal.Add(float64(bytes))
	}
}
