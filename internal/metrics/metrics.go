// Package metrics exports the ingestion pipeline's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ingest"

// Metrics holds the pipeline counters on their own registry.
type Metrics struct {
	reg *prometheus.Registry

	ListingsTotal *prometheus.CounterVec
	PagesFailed   *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	LastRun       *prometheus.GaugeVec
}

// New registers every metric, plus Go and process collectors, on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		ListingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_total",
			Help:      "Listings processed, by source and terminal outcome.",
		}, []string{"source", "outcome"}),
		PagesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_failed_total",
			Help:      "Listing pages skipped after a fetch or parse failure.",
		}, []string{"source"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_run_duration_seconds",
			Help:      "Wall time of one source run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"source"}),
		LastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_last_run_timestamp_seconds",
			Help:      "Unix time the source last finished a run.",
		}, []string{"source"}),
	}
}

// ListingProcessed counts one listing reaching outcome.
func (m *Metrics) ListingProcessed(source, outcome string) {
	m.ListingsTotal.WithLabelValues(source, outcome).Inc()
}

// PageFailed counts one skipped page.
func (m *Metrics) PageFailed(source string) {
	m.PagesFailed.WithLabelValues(source).Inc()
}

// RunFinished records a finished source run.
func (m *Metrics) RunFinished(source string, elapsed time.Duration) {
	m.RunDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	m.LastRun.WithLabelValues(source).SetToCurrentTime()
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
