package stats

import (
	"net/http"
	"strconv"
	"time"

	"lyricsync-go/circuitbreaker"
	"lyricsync-go/services/fallback"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lyricsync"

// Metrics holds the Prometheus collectors on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	Outcomes        *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	RateLimited     prometheus.Counter
	CircuitState    *prometheus.GaugeVec
}

// NewMetrics registers all collectors plus the Go and process collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Fallback attempts by operation, provider and status.",
		}, []string{"operation", "provider", "status"}),
		AttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_duration_seconds",
			Help:      "Latency of provider calls that were actually made.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation", "provider"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Identify and lyrics requests by whether any provider matched.",
		}, []string{"operation", "found"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Lyrics cache lookups by result (hit, miss, negative).",
		}, []string{"result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per provider (0 closed, 1 open, 2 half-open).",
		}, []string{"provider"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests,
		m.RequestDuration,
		m.Attempts,
		m.AttemptDuration,
		m.Outcomes,
		m.CacheLookups,
		m.RateLimited,
		m.CircuitState,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveCircuitState is a circuitbreaker.StateChangeFunc
func (m *Metrics) ObserveCircuitState(name string, from, to circuitbreaker.State) {
	m.CircuitState.WithLabelValues(name).Set(float64(to))
}

func (m *Metrics) observeRequest(route string, code int, duration time.Duration) {
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) observeAttempt(op fallback.Operation, provider string, status fallback.Status, duration time.Duration) {
	m.Attempts.WithLabelValues(string(op), provider, string(status)).Inc()

	// Skipped candidates never made a call
	if status == fallback.StatusDisabled || status == fallback.StatusCircuitOpen {
		return
	}
	m.AttemptDuration.WithLabelValues(string(op), provider).Observe(duration.Seconds())
}

func (m *Metrics) observeOutcome(op fallback.Operation, found bool) {
	m.Outcomes.WithLabelValues(string(op), strconv.FormatBool(found)).Inc()
}
