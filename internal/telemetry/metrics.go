// Package telemetry tracks per-domain pipeline health: Prometheus
// collectors for dashboards plus an in-process snapshot used by the alert
// evaluator and the admin API.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterJobsTotal          *prometheus.CounterVec
	harvesterJobDurationSeconds *prometheus.HistogramVec
	harvesterParserHitsTotal    *prometheus.CounterVec
	harvesterFetchFailuresTotal *prometheus.CounterVec
	harvesterComplianceTotal    *prometheus.CounterVec
	harvesterDedupTotal         *prometheus.CounterVec
	harvesterDispositionTotal   *prometheus.CounterVec
	harvesterCircuitOpenTotal   *prometheus.CounterVec
	harvesterActiveWorkers      prometheus.Gauge
	harvesterRetryQueueDepth    prometheus.Gauge
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_jobs_total",
				Help: "Total number of jobs finished, labeled by domain and outcome.",
			},
			[]string{"domain", "outcome"},
		)

		harvesterJobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_job_duration_seconds",
				Help:    "Histogram of end-to-end job durations, labeled by domain.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"domain"},
		)

		harvesterParserHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_parser_hits_total",
				Help: "Total extraction wins, labeled by domain and strategy.",
			},
			[]string{"domain", "strategy"},
		)

		harvesterFetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_failures_total",
				Help: "Total fetch failures, labeled by domain and failure label.",
			},
			[]string{"domain", "label"},
		)

		harvesterComplianceTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_compliance_rejections_total",
				Help: "Total compliance rejections, labeled by domain and reason.",
			},
			[]string{"domain", "reason"},
		)

		harvesterDedupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_dedup_total",
				Help: "Total dedup verdicts, labeled by domain and class.",
			},
			[]string{"domain", "class"},
		)

		harvesterDispositionTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_dispositions_total",
				Help: "Total quality dispositions, labeled by domain and disposition.",
			},
			[]string{"domain", "disposition"},
		)

		harvesterCircuitOpenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_circuit_open_total",
				Help: "Times a job was deferred because the domain circuit was open.",
			},
			[]string{"domain"},
		)

		harvesterActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		harvesterRetryQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_retry_queue_depth",
				Help: "Jobs currently waiting in failed-retryable.",
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
	})
}

// RecordJobOutcome increments the job outcome counter and records duration.
func RecordJobOutcome(domain, outcome string, duration time.Duration) {
	harvesterJobsTotal.WithLabelValues(domain, outcome).Inc()
	harvesterJobDurationSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordParserHit increments the extraction win counter.
func RecordParserHit(domain, strategy string) {
	harvesterParserHitsTotal.WithLabelValues(domain, strategy).Inc()
}

// RecordFetchFailure increments the fetch failure counter.
func RecordFetchFailure(domain, label string) {
	harvesterFetchFailuresTotal.WithLabelValues(domain, label).Inc()
}

// RecordComplianceRejection increments the compliance rejection counter.
func RecordComplianceRejection(domain, reason string) {
	harvesterComplianceTotal.WithLabelValues(domain, reason).Inc()
}

// RecordDedup increments the dedup verdict counter.
func RecordDedup(domain, class string) {
	harvesterDedupTotal.WithLabelValues(domain, class).Inc()
}

// RecordDisposition increments the quality disposition counter.
func RecordDisposition(domain, disposition string) {
	harvesterDispositionTotal.WithLabelValues(domain, disposition).Inc()
}

// RecordCircuitDeferral counts a job deferred by an open domain circuit.
func RecordCircuitDeferral(domain string) {
	harvesterCircuitOpenTotal.WithLabelValues(domain).Inc()
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	harvesterActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	harvesterActiveWorkers.Dec()
}

// SetRetryQueueDepth records the current failed-retryable backlog.
func SetRetryQueueDepth(depth int) {
	harvesterRetryQueueDepth.Set(float64(depth))
}
