package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce               sync.Once
	httpRequestsTotal          *prometheus.CounterVec
	httpLatencySeconds         *prometheus.HistogramVec
	httpErrorsTotal            *prometheus.CounterVec
	submissionsTotal           *prometheus.CounterVec
	submissionsRejectedTotal   *prometheus.CounterVec
	runTransitionsTotal        *prometheus.CounterVec
	activeRuns                 prometheus.Gauge
	taskDeadlineAbortsTotal    prometheus.Counter
	scoreboardCacheEventsTotal *prometheus.CounterVec
	viewersConnected           prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API
// and the evaluation engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbiter_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_submissions_total",
			Help: "Accepted submissions by final verdict.",
		}, []string{"verdict"})

		submissionsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_submissions_rejected_total",
			Help: "Submissions turned away before entering task history.",
		}, []string{"reason"})

		runTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_run_transitions_total",
			Help: "Run lifecycle transitions by target status.",
		}, []string{"status"})

		activeRuns = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbiter_active_runs",
			Help: "Number of registered, non-terminated runs.",
		})

		taskDeadlineAbortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_task_deadline_aborts_total",
			Help: "Task windows closed by the deadline poller.",
		})

		scoreboardCacheEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_scoreboard_cache_events_total",
			Help: "Scoreboard cache hits and misses.",
		}, []string{"event"})

		viewersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbiter_viewers_connected",
			Help: "Currently connected viewer websocket clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			submissionsTotal, submissionsRejectedTotal, runTransitionsTotal,
			activeRuns, taskDeadlineAbortsTotal, scoreboardCacheEventsTotal,
			viewersConnected,
		)
	})
}

// HTTPRequests exposes the counter for served API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionsTotal exposes the counter for accepted submissions.
func SubmissionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// SubmissionsRejectedTotal exposes the counter for rejected submissions.
func SubmissionsRejectedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsRejectedTotal
}

// RunTransitionsTotal exposes the counter for run lifecycle transitions.
func RunTransitionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return runTransitionsTotal
}

// ActiveRuns exposes the gauge of registered, non-terminated runs.
func ActiveRuns() prometheus.Gauge {
	RegisterMetrics()
	return activeRuns
}

// TaskDeadlineAborts exposes the counter for poller-driven task aborts.
func TaskDeadlineAborts() prometheus.Counter {
	RegisterMetrics()
	return taskDeadlineAbortsTotal
}

// ScoreboardCacheEvents exposes the counter for scoreboard cache activity.
func ScoreboardCacheEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return scoreboardCacheEventsTotal
}

// ViewersConnected exposes the gauge of connected viewer clients.
func ViewersConnected() prometheus.Gauge {
	RegisterMetrics()
	return viewersConnected
}
