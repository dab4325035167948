// Package metrics defines the Prometheus collectors used by the indexing
// pipeline and the query server, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	DocsIndexedTotal     prometheus.Counter
	DocsSkippedTotal     prometheus.Counter
	TermsTotal           prometheus.Gauge
	PostingsWrittenTotal prometheus.Counter
	TermIndexBytes       prometheus.Gauge
	StageDuration        *prometheus.HistogramVec
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexReloadsTotal    *prometheus.CounterVec
}

// New creates all collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "posindex_documents_indexed_total",
				Help: "Documents assigned a docId by the corpus tokenizer.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "posindex_documents_skipped_total",
				Help: "Documents skipped because they could not be read or parsed.",
			},
		),
		TermsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "posindex_terms",
				Help: "Distinct terms in the most recently built index.",
			},
		),
		PostingsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "posindex_postings_written_total",
				Help: "Postings delta-encoded into term_index.txt.",
			},
		),
		TermIndexBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "posindex_term_index_bytes",
				Help: "Size of the most recently written term_index.txt.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posindex_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posindex_lookups_total",
				Help: "Index lookups by kind (document, term, term_document) and result.",
			},
			[]string{"kind", "result"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posindex_lookup_latency_seconds",
				Help:    "Index lookup latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of lookup cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of lookup cache misses.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posindex_index_reloads_total",
				Help: "Reader reloads triggered by index events, by status.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.TermsTotal,
		m.PostingsWrittenTotal,
		m.TermIndexBytes,
		m.StageDuration,
		m.LookupsTotal,
		m.LookupLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexReloadsTotal,
	)

	return m
}

// Registry returns the gatherer backing this Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the current values in the node_exporter textfile
// format. CLI runs use it since they exit before anything could scrape them.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) DocumentIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

func (m *Metrics) DocumentSkipped() {
	if m == nil {
		return
	}
	m.DocsSkippedTotal.Inc()
}

// IndexWritten records the shape of a freshly constructed index.
func (m *Metrics) IndexWritten(terms int, postings int64, bytes int64) {
	if m == nil {
		return
	}
	m.TermsTotal.Set(float64(terms))
	m.PostingsWrittenTotal.Add(float64(postings))
	m.TermIndexBytes.Set(float64(bytes))
}

func (m *Metrics) ObserveLookup(kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(kind, result).Inc()
	m.LookupLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) IndexReloaded(status string) {
	if m == nil {
		return
	}
	m.IndexReloadsTotal.WithLabelValues(status).Inc()
}
