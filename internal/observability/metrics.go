package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	evaluationsTotal      *prometheus.CounterVec
	decisionLogFailures   prometheus.Counter
	sessionsStartedTotal  *prometheus.CounterVec
	sessionsFinishedTotal *prometheus.CounterVec
	timeoutsTotal         prometheus.Counter
	progressConflicts     prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crisiscoach_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crisiscoach_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crisiscoach_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crisiscoach_evaluations_total",
			Help: "Answer evaluations by feedback source.",
		}, []string{"source"})

		decisionLogFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crisiscoach_decision_log_failures_total",
			Help: "Decision log writes that failed.",
		})

		sessionsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crisiscoach_sessions_started_total",
			Help: "Quiz sessions started by mode.",
		}, []string{"mode"})

		sessionsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crisiscoach_sessions_finished_total",
			Help: "Quiz sessions finished by result.",
		}, []string{"result"})

		timeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crisiscoach_question_timeouts_total",
			Help: "Questions that ran out of time.",
		})

		progressConflicts = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crisiscoach_progress_conflicts_total",
			Help: "Progress writes that lost a version race and were retried.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			evaluationsTotal, decisionLogFailures,
			sessionsStartedTotal, sessionsFinishedTotal, timeoutsTotal,
			progressConflicts,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Evaluations counts evaluations labelled by feedback source.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// DecisionLogFailures counts failed decision log writes.
func DecisionLogFailures() prometheus.Counter {
	RegisterMetrics()
	return decisionLogFailures
}

// SessionsStarted counts started sessions by mode.
func SessionsStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionsStartedTotal
}

// SessionsFinished counts finished sessions by result (perfect, completed, abandoned).
func SessionsFinished() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionsFinishedTotal
}

// QuestionTimeouts counts questions that expired.
func QuestionTimeouts() prometheus.Counter {
	RegisterMetrics()
	return timeoutsTotal
}

// ProgressConflicts counts optimistic progress write conflicts.
func ProgressConflicts() prometheus.Counter {
	RegisterMetrics()
	return progressConflicts
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
