// Package metrics exposes Prometheus collectors for the keyword crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Keyword task outcomes.
const (
	KeywordProcessed = "processed"
	KeywordDuplicate = "duplicate"
	KeywordDropped   = "dropped"
)

var (
	keywordsTotal              *prometheus.CounterVec
	fetchesTotal               *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	resultsTotal               *prometheus.CounterVec
	sinkWritesTotal            *prometheus.CounterVec
	checkpointsTotal           *prometheus.CounterVec
	checkpointDurationSeconds  prometheus.Histogram
	frontierSize               prometheus.Gauge
	activeTasks                prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		keywordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kwcrawler_keywords_total",
				Help: "Keyword tasks finished, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kwcrawler_fetches_total",
				Help: "Result page fetches, labeled by category and status.",
			},
			[]string{"category", "status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kwcrawler_fetch_duration_seconds",
				Help:    "Histogram of result page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"category"},
		)

		resultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kwcrawler_results_total",
				Help: "Classified candidates, labeled by category and decision.",
			},
			[]string{"category", "decision"},
		)

		sinkWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kwcrawler_sink_writes_total",
				Help: "Result sink writes, labeled by status.",
			},
			[]string{"status"},
		)

		checkpointsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kwcrawler_checkpoints_total",
				Help: "Checkpoint persists, labeled by status.",
			},
			[]string{"status"},
		)

		checkpointDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kwcrawler_checkpoint_duration_seconds",
				Help:    "Histogram of checkpoint persist durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		frontierSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kwcrawler_frontier_size",
				Help: "Number of keywords waiting in the frontier.",
			},
		)

		activeTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kwcrawler_active_tasks",
				Help: "Number of keyword tasks currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kwcrawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"key"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kwcrawler_http_requests_total",
				Help: "Status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kwcrawler_http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveKeyword counts a finished keyword task.
func ObserveKeyword(outcome string) {
	Init()
	keywordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one page fetch.
func ObserveFetch(category string, err error, duration time.Duration) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	fetchesTotal.WithLabelValues(category, status).Inc()
	fetchDurationSeconds.WithLabelValues(category).Observe(duration.Seconds())
}

// ObserveClassified records classifier decisions for one page.
func ObserveClassified(category string, accepted, filtered, duplicate int) {
	Init()
	if accepted > 0 {
		resultsTotal.WithLabelValues(category, "accepted").Add(float64(accepted))
	}
	if filtered > 0 {
		resultsTotal.WithLabelValues(category, "filtered").Add(float64(filtered))
	}
	if duplicate > 0 {
		resultsTotal.WithLabelValues(category, "duplicate").Add(float64(duplicate))
	}
}

// ObserveSinkWrite records a sink write outcome.
func ObserveSinkWrite(err error) {
	Init()
	if err != nil {
		sinkWritesTotal.WithLabelValues("error").Inc()
		return
	}
	sinkWritesTotal.WithLabelValues("ok").Inc()
}

// ObserveCheckpoint records a checkpoint persist.
func ObserveCheckpoint(err error, duration time.Duration) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	checkpointsTotal.WithLabelValues(status).Inc()
	checkpointDurationSeconds.Observe(duration.Seconds())
}

// SetFrontierSize updates the frontier gauge.
func SetFrontierSize(n int) {
	Init()
	frontierSize.Set(float64(n))
}

// IncActiveTasks increments the active task gauge.
func IncActiveTasks() {
	Init()
	activeTasks.Inc()
}

// DecActiveTasks decrements the active task gauge.
func DecActiveTasks() {
	Init()
	activeTasks.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one status server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
