// Package metrics exposes Prometheus collectors for the bid watcher.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded per source.
const (
	QueryOK     = "ok"
	QueryEmpty  = "empty"
	QueryFailed = "failed"
)

// Record results recorded per source.
const (
	RecordAdmitted  = "admitted"
	RecordFiltered  = "filtered"
	RecordDuplicate = "duplicate"
)

var (
	sourceQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_source_queries_total",
			Help: "Total number of keyword queries issued, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_records_total",
			Help: "Total number of candidate records, labeled by source and result.",
		},
		[]string{"source", "result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_notifications_total",
			Help: "Total number of webhook deliveries, labeled by result.",
		},
		[]string{"result"},
	)

	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_cycles_total",
			Help: "Total number of polling cycles, labeled by status.",
		},
		[]string{"status"},
	)

	cycleDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bidwatch_cycle_duration_seconds",
			Help:    "Histogram of polling cycle durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	dedupeStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bidwatch_dedupe_store_size",
			Help: "Number of records currently held by the dedup store.",
		},
	)

	httpRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidwatch_http_retries_total",
			Help: "Total number of outbound HTTP retries, labeled by host.",
		},
		[]string{"host"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidwatch_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveQuery records the outcome of one source query.
func ObserveQuery(source, outcome string) {
	sourceQueriesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveRecord records what happened to one candidate record.
func ObserveRecord(source, result string) {
	recordsTotal.WithLabelValues(source, result).Inc()
}

// ObserveNotification records a webhook delivery.
func ObserveNotification(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(result).Inc()
}

// ObserveCycle records a finished cycle.
func ObserveCycle(status string, duration time.Duration) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// SetDedupeSize publishes the dedup store size.
func SetDedupeSize(n int) {
	dedupeStoreSize.Set(float64(n))
}

// ObserveRetry increments the retry counter for the URL's host.
func ObserveRetry(rawURL string) {
	httpRetriesTotal.WithLabelValues(SanitizeHost(rawURL)).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest records metrics for a served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
