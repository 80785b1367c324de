package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	turnsTotal   *prometheus.CounterVec
	turnDuration prometheus.Histogram

	decisionsTotal       *prometheus.CounterVec
	decisionFallbacks    prometheus.Counter
	decisionParseErrors  prometheus.Counter
	completionDuration   *prometheus.HistogramVec
	completionErrorTotal *prometheus.CounterVec

	toolExecutionsTotal *prometheus.CounterVec
	toolErrorsTotal     *prometheus.CounterVec

	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsEvicted *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
	registry    *prometheus.Registry
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			turnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turns_total",
					Help: "Conversation turns processed by status.",
				},
				[]string{"status"},
			),
			turnDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "turn_duration_seconds",
					Help:    "End-to-end turn processing duration.",
					Buckets: prometheus.DefBuckets,
				},
			),
			decisionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "decisions_total",
					Help: "Decisions produced by selected tool.",
				},
				[]string{"tool"},
			),
			decisionFallbacks: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "decision_fallbacks_total",
					Help: "Decisions overridden by the deterministic search corrector.",
				},
			),
			decisionParseErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "decision_parse_errors_total",
					Help: "Malformed decision payloads replaced with a no-op.",
				},
			),
			completionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "completion_call_duration_seconds",
					Help:    "Completion service call duration by phase.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"phase"},
			),
			completionErrorTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "completion_call_errors_total",
					Help: "Completion service failures by phase.",
				},
				[]string{"phase"},
			),
			toolExecutionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_executions_total",
					Help: "Tool dispatches by tool name and status.",
				},
				[]string{"tool", "status"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Collaborator failures converted to error results.",
				},
				[]string{"tool"},
			),
			sessionsActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessions_active",
					Help: "Current live session count.",
				},
			),
			sessionsCreated: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_created_total",
					Help: "Sessions created on first contact.",
				},
			),
			sessionsEvicted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sessions_evicted_total",
					Help: "Sessions evicted by expiry reason.",
				},
				[]string{"reason"},
			),
		}

		registry = prometheus.NewRegistry()
		registry.MustRegister(
			m.turnsTotal,
			m.turnDuration,
			m.decisionsTotal,
			m.decisionFallbacks,
			m.decisionParseErrors,
			m.completionDuration,
			m.completionErrorTotal,
			m.toolExecutionsTotal,
			m.toolErrorsTotal,
			m.sessionsActive,
			m.sessionsCreated,
			m.sessionsEvicted,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered initializes the metric set. Safe to call from any package.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordTurn records a completed turn
func RecordTurn(status string, d time.Duration) {
	m := getMetrics()
	m.turnsTotal.WithLabelValues(status).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// RecordDecision records the tool a decision selected
func RecordDecision(tool string) {
	getMetrics().decisionsTotal.WithLabelValues(tool).Inc()
}

// RecordDecisionFallback records a deterministic search override
func RecordDecisionFallback() {
	getMetrics().decisionFallbacks.Inc()
}

// RecordDecisionParseError records a malformed decision payload
func RecordDecisionParseError() {
	getMetrics().decisionParseErrors.Inc()
}

// RecordCompletionCall records a completion service round trip
func RecordCompletionCall(phase string, d time.Duration, err error) {
	m := getMetrics()
	m.completionDuration.WithLabelValues(phase).Observe(d.Seconds())
	if err != nil {
		m.completionErrorTotal.WithLabelValues(phase).Inc()
	}
}

// RecordToolExecution records a tool dispatch
func RecordToolExecution(tool, status string) {
	getMetrics().toolExecutionsTotal.WithLabelValues(tool, status).Inc()
}

// RecordToolError records a collaborator failure inside a dispatch branch
func RecordToolError(tool string) {
	getMetrics().toolErrorsTotal.WithLabelValues(tool).Inc()
}

// SetActiveSessions updates the live session gauge
func SetActiveSessions(n int) {
	getMetrics().sessionsActive.Set(float64(n))
}

// RecordSessionCreated records a session created on first contact
func RecordSessionCreated() {
	getMetrics().sessionsCreated.Inc()
}

// RecordSessionEvicted records an eviction by reason ("ttl", "max_duration", "closed")
func RecordSessionEvicted(reason string) {
	getMetrics().sessionsEvicted.WithLabelValues(reason).Inc()
}
