// Package metrics provides Prometheus collectors for the pipeline and the
// HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RawInserted      *prometheus.CounterVec
	CollectErrors    *prometheus.CounterVec
	CleanWritten     *prometheus.CounterVec
	CleanDropped     *prometheus.CounterVec
	IndicatorScored  *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	MetadataReloaded prometheus.Counter
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RawInserted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sspi_raw_documents_inserted_total",
			Help: "Raw documents inserted after deduplication",
		}, []string{"dataset"}),
		CollectErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sspi_collect_errors_total",
			Help: "Collections that ended with an upstream error",
		}, []string{"dataset"}),
		CleanWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sspi_clean_observations_written_total",
			Help: "Observations written by clean runs",
		}, []string{"dataset"}),
		CleanDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sspi_clean_records_dropped_total",
			Help: "Raw records dropped while cleaning, by reason",
		}, []string{"dataset", "reason"}),
		IndicatorScored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sspi_indicator_groups_scored_total",
			Help: "Country-year groups scored, by outcome",
		}, []string{"indicator", "outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sspi_stage_duration_seconds",
			Help:    "Duration of collect, clean and score runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sspi_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sspi_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		MetadataReloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "sspi_metadata_reloads_total",
			Help: "Successful metadata reloads",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddRawInserted records n raw documents inserted for dataset.
func (m *Metrics) AddRawInserted(dataset string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RawInserted.WithLabelValues(dataset).Add(float64(n))
}

// IncCollectError records a failed collection.
func (m *Metrics) IncCollectError(dataset string) {
	if m == nil {
		return
	}
	m.CollectErrors.WithLabelValues(dataset).Inc()
}

// RecordClean records the outcome of a clean run.
func (m *Metrics) RecordClean(dataset string, written int, dropped map[string]int) {
	if m == nil {
		return
	}
	m.CleanWritten.WithLabelValues(dataset).Add(float64(written))
	for reason, n := range dropped {
		m.CleanDropped.WithLabelValues(dataset, reason).Add(float64(n))
	}
}

// RecordScore records complete and incomplete group counts.
func (m *Metrics) RecordScore(indicator string, complete, incomplete int) {
	if m == nil {
		return
	}
	m.IndicatorScored.WithLabelValues(indicator, "complete").Add(float64(complete))
	m.IndicatorScored.WithLabelValues(indicator, "incomplete").Add(float64(incomplete))
}

// ObserveStage records the duration of a stage started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(route, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// IncMetadataReloaded records a successful reload.
func (m *Metrics) IncMetadataReloaded() {
	if m == nil {
		return
	}
	m.MetadataReloaded.Inc()
}
