// Package metrics holds the Prometheus collectors for the extractor run and
// the query service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ghusers"

// Extractor counts what an extraction run did upstream.
type Extractor struct {
	pages          prometheus.Counter
	accepted       prometheus.Counter
	rejected       *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	rateLimitWaits prometheus.Counter
	rateLimitSecs  prometheus.Counter
}

// NewExtractor registers the extractor collectors on reg.
func NewExtractor(reg prometheus.Registerer) *Extractor {
	auto := promauto.With(reg)
	return &Extractor{
		pages: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "pages_total",
			Help:      "Listing pages fetched successfully",
		}),
		accepted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "users_accepted_total",
			Help:      "Users that passed the inclusion filter",
		}),
		rejected: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "users_rejected_total",
			Help:      "Users rejected by the inclusion filter, by reason",
		}, []string{"reason"}),
		upstreamErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "upstream_errors_total",
			Help:      "Failed upstream calls by endpoint and failure class",
		}, []string{"endpoint", "class"}),
		rateLimitWaits: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "rate_limit_waits_total",
			Help:      "Times the run blocked on an exhausted upstream quota",
		}),
		rateLimitSecs: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Seconds spent waiting for the upstream quota to reset",
		}),
	}
}

// Page counts one listing page fetched.
func (m *Extractor) Page() { m.pages.Inc() }

// Accepted counts one user kept by the extractor.
func (m *Extractor) Accepted() { m.accepted.Inc() }

// Rejected counts one user dropped by the inclusion predicate, by reason.
func (m *Extractor) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// UpstreamError counts one failed upstream call by endpoint ("page" or
// "detail") and failure class.
func (m *Extractor) UpstreamError(endpoint, class string) {
	m.upstreamErrors.WithLabelValues(endpoint, class).Inc()
}

// RateLimitWait records one quota wait of d.
func (m *Extractor) RateLimitWait(d time.Duration) {
	m.rateLimitWaits.Inc()
	m.rateLimitSecs.Add(d.Seconds())
}

// HTTP tracks request counts and latency by route pattern.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP registers the HTTP collectors on reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	auto := promauto.With(reg)
	return &HTTP{
		requests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status_code"}),
		duration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Observe records one finished request.
func (m *HTTP) Observe(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// WriteTextfile dumps everything gathered by g in the text exposition format,
// for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
