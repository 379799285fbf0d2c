package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	InFlight         prometheus.Gauge
	ItemsTotal       prometheus.Counter
	PageFailureTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_page_requests_total",
			Help: "Page requests issued by the scraper, by outcome kind.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_page_request_duration_seconds",
			Help:    "Latency of single page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_page_requests_in_flight",
			Help: "Page requests currently executing.",
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_aggregated_total",
			Help: "Catalog items collected from successful pages.",
		},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_page_failures_total",
			Help: "Pages dropped from the run, by failure kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requests, requestDuration, inFlight, items, failures)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		InFlight:         inFlight,
		ItemsTotal:       items,
		PageFailureTotal: failures,
	}
}

// IncRequest increments the requests counter for an outcome kind.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a page request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// TrackInFlight adjusts the in-flight gauge by delta.
func (m *Metrics) TrackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}

// AddItems increments the aggregated items counter.
func (m *Metrics) AddItems(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsTotal.Add(float64(n))
}

// IncPageFailure increments the dropped page counter for a kind label.
func (m *Metrics) IncPageFailure(kind string) {
	if m == nil {
		return
	}
	m.PageFailureTotal.WithLabelValues(kind).Inc()
}
