// Package metrics exposes ledger, storage and HTTP activity as Prometheus
// collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paluwagan/internal/core"
	"paluwagan/internal/services"
	"paluwagan/internal/storage"
)

const namespace = "paluwagan"

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	paymentsRecorded  *prometheus.CounterVec
	paymentCents      *prometheus.CounterVec
	remindersEmitted  *prometheus.CounterVec
	roundsOpened      prometheus.Counter
	collectionsOpened prometheus.Counter
	decodeDefaults    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  prometheus.Counter
	suspicious   prometheus.Counter
}

var (
	_ services.Observer      = (*Metrics)(nil)
	_ storage.DecodeObserver = (*Metrics)(nil)
)

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Collections marked paid, by payment method.",
		}, []string{"method"}),
		paymentCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_amount_cents_total",
			Help:      "Sum of recorded payments in centavos, by payment method.",
		}, []string{"method"}),
		remindersEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_emitted_total",
			Help:      "Payment reminders emitted, by kind and result.",
		}, []string{"kind", "result"}),
		roundsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_opened_total",
			Help:      "Contribution rounds opened.",
		}),
		collectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_opened_total",
			Help:      "Collections created when rounds open.",
		}),
		decodeDefaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_defaults_total",
			Help:      "Stored fields that were missing or malformed and fell back to a default.",
		}, []string{"entity", "field"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known attack pattern.",
		}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.paymentsRecorded,
		m.paymentCents,
		m.remindersEmitted,
		m.roundsOpened,
		m.collectionsOpened,
		m.decodeDefaults,
		m.httpRequests,
		m.httpDuration,
		m.rateLimited,
		m.suspicious,
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) PaymentRecorded(method core.PaymentMethod, amount core.Money) {
	m.paymentsRecorded.WithLabelValues(string(method)).Inc()
	if amount.Cents > 0 {
		m.paymentCents.WithLabelValues(string(method)).Add(float64(amount.Cents))
	}
}

func (m *Metrics) ReminderEmitted(kind core.ReminderKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.remindersEmitted.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) RoundOpened(_ string, _ int, collections int) {
	m.roundsOpened.Inc()
	m.collectionsOpened.Add(float64(collections))
}

func (m *Metrics) ObserveDecodeDefaults(entity string, diags core.Diagnostics) {
	for _, d := range diags {
		m.decodeDefaults.WithLabelValues(entity, d.Field).Inc()
	}
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RateLimited()       { m.rateLimited.Inc() }
func (m *Metrics) SuspiciousRequest() { m.suspicious.Inc() }
