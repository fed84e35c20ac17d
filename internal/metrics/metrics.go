// Package metrics owns the Prometheus registry exposed at /metrics.
//
// Every helper is nil-safe so packages can take an optional *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	BulkActionsTotal    *prometheus.CounterVec
	DeriveDuration      *prometheus.HistogramVec
	DealRequestsTotal   *prometheus.CounterVec
	ExtractorCacheTotal *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New constructs and registers every collector, plus the Go and process
// collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	bulk := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogdesk_bulk_actions_total",
			Help: "Bulk actions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
	derive := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogdesk_derive_duration_seconds",
			Help:    "Time spent filtering and sorting a product view.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"source"},
	)
	deals := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogdesk_deal_api_requests_total",
			Help: "Requests to the deal API by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	cache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogdesk_extractor_cache_total",
			Help: "Extractor cache lookups by result.",
		},
		[]string{"result"},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogdesk_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	registry.MustRegister(
		bulk, derive, deals, cache, httpRequests, httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:            registry,
		BulkActionsTotal:    bulk,
		DeriveDuration:      derive,
		DealRequestsTotal:   deals,
		ExtractorCacheTotal: cache,
		HTTPRequestsTotal:   httpRequests,
		HTTPRequestDuration: httpDuration,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncBulkAction counts one bulk action. success selects the outcome label.
func (m *Metrics) IncBulkAction(action string, success bool) {
	if m == nil {
		return
	}
	m.BulkActionsTotal.WithLabelValues(action, outcome(success)).Inc()
}

// ObserveDerive records how long a derive over source took.
func (m *Metrics) ObserveDerive(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.DeriveDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncDealRequest counts one deal API call.
func (m *Metrics) IncDealRequest(endpoint string, success bool) {
	if m == nil {
		return
	}
	m.DealRequestsTotal.WithLabelValues(endpoint, outcome(success)).Inc()
}

// IncExtractorCache counts a cache hit or miss.
func (m *Metrics) IncExtractorCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ExtractorCacheTotal.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
