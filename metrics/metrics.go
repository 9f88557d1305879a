// Package metrics instruments the completion pipeline with Prometheus.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gitlab_ls"

// Cache lookup results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
)

// Fetch outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups every collector the server exposes.
type Metrics struct {
	cacheRequests        *prometheus.CounterVec
	fetches              *prometheus.CounterVec
	fetchDuration        *prometheus.HistogramVec
	degradedServes       *prometheus.CounterVec
	completionDuration   *prometheus.HistogramVec
	completionCandidates *prometheus.HistogramVec
	openDocuments        prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Resource cache lookups by kind and result (hit, miss, stale).",
		}, []string{"kind", "result"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Upstream fetches by kind and status.",
		}, []string{"kind", "status"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}, []string{"kind"}),
		degradedServes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "degraded_serves_total",
			Help:      "Stale entries served because the last refresh failed.",
		}, []string{"kind"}),
		completionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "duration_seconds",
			Help:      "Time to answer a completion request.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"kind"}),
		completionCandidates: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "candidates",
			Help:      "Candidates returned per completion request.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}, []string{"kind"}),
		openDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "open",
			Help:      "Documents currently open across sessions.",
		}),
	}
}

// CacheRequest counts a cache lookup.
func (m *Metrics) CacheRequest(kind, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(kind, result).Inc()
}

// Fetch records one upstream fetch.
func (m *Metrics) Fetch(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.fetches.WithLabelValues(kind, status).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// DegradedServe counts a stale entry served after a failed refresh.
func (m *Metrics) DegradedServe(kind string) {
	if m == nil {
		return
	}
	m.degradedServes.WithLabelValues(kind).Inc()
}

// Completion records one answered completion request.
func (m *Metrics) Completion(kind string, d time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.completionDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.completionCandidates.WithLabelValues(kind).Observe(float64(candidates))
}

// DocumentOpened increments the open document gauge.
func (m *Metrics) DocumentOpened() {
	if m == nil {
		return
	}
	m.openDocuments.Inc()
}

// DocumentsClosed decrements the open document gauge by n.
func (m *Metrics) DocumentsClosed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.openDocuments.Sub(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
