// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samcrawler_tasks_total",
			Help: "Total number of crawl tasks finished, labeled by status.",
		},
		[]string{"status"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samcrawler_records_total",
			Help: "Opportunity records by pipeline outcome.",
		},
		[]string{"outcome"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samcrawler_fetches_total",
			Help: "Upstream fetches, labeled by kind and result.",
		},
		[]string{"kind", "result"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samcrawler_fetch_retries_total",
			Help: "Retries issued by the fetcher, labeled by kind.",
		},
		[]string{"kind"},
	)

	classifierCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samcrawler_classifier_calls_total",
			Help: "Relevance classifier calls, labeled by mode and result.",
		},
		[]string{"mode", "result"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "samcrawler_active_workers",
			Help: "Number of workers currently running a task.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "samcrawler_rate_limit_delay_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask increments the task counter for a terminal status.
func ObserveTask(status string) {
	tasksTotal.WithLabelValues(status).Inc()
}

// ObserveRecord counts one record outcome (stored_inserted, dropped_defense, error, ...).
func ObserveRecord(outcome string) {
	recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch counts one upstream fetch.
func ObserveFetch(kind, result string) {
	fetchesTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRetry counts one fetch retry.
func ObserveRetry(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	fetchRetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveClassifier counts one classifier decision.
func ObserveClassifier(mode string, relevant bool) {
	classifierCallsTotal.WithLabelValues(mode, strconv.FormatBool(relevant)).Inc()
}

// ObserveClassifierError counts a classifier call that failed closed.
func ObserveClassifierError(mode string) {
	classifierCallsTotal.WithLabelValues(mode, "error").Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
