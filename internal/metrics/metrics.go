// Package metrics exposes Prometheus counters for lead intake. Every method is
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	submissions      *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	undelivered      prometheus.Counter
	breakerState     *prometheus.GaugeVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_submissions_total",
			Help: "Lead submissions by outcome (accepted, rejected, error).",
		}, []string{"outcome"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_upstream_failures_total",
			Help: "Swallowed failures of best-effort upstream calls.",
		}, []string{"upstream"}),
		undelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lead_undelivered_total",
			Help: "Accepted leads that reached neither the CRM nor the CMS.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lead_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		}, []string{"upstream"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.submissions,
		m.upstreamFailures,
		m.undelivered,
		m.breakerState,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Submission counts a lead submission by outcome.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// UpstreamFailure counts a swallowed upstream failure.
func (m *Metrics) UpstreamFailure(upstream string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(upstream).Inc()
}

// Undelivered counts a lead that no downstream system received.
func (m *Metrics) Undelivered() {
	if m == nil {
		return
	}
	m.undelivered.Inc()
}

// BreakerState records a breaker state (0 closed, 1 half-open, 2 open).
func (m *Metrics) BreakerState(upstream string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(upstream).Set(state)
}

// Request records one HTTP request.
func (m *Metrics) Request(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
