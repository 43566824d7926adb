package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - LLM request performance, token usage, and failure rate
//   - Tool execution counts and latencies
//   - Context pressure and the graduated actions it triggers
//   - Sub-agent population and session lifetime
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
type Metrics struct {
	// LLMRequestDuration measures model completion latency in seconds.
	// Labels: model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts completion requests by model and status.
	// Labels: model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption by model and kind.
	// Labels: model, kind (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by name and status.
	// Labels: tool_name, status (success|error|denied)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by owning component and error kind.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSubAgents is a gauge of currently running sub-agents.
	// Labels: kind (llm_session|background_process)
	ActiveSubAgents *prometheus.GaugeVec

	// SessionDuration measures a session's lifetime from start to terminal result.
	SessionDuration prometheus.Histogram

	// ContextPressure samples the prompt_tokens/window ratio at each turn.
	ContextPressure prometheus.Histogram

	// ContextActionCounter counts the action returned by the context manager.
	// Labels: action (continue|mask|wind_down|restart)
	ContextActionCounter *prometheus.CounterVec

	// SessionRestarts counts ContextFull-triggered session restarts.
	SessionRestarts prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registerer. This should be called once at harness startup.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ouroboros_llm_request_duration_seconds",
				Help:    "Duration of model completion requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ouroboros_llm_requests_total",
				Help: "Total number of completion requests by model and status",
			},
			[]string{"model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ouroboros_llm_tokens_total",
				Help: "Total number of tokens used by model and kind",
			},
			[]string{"model", "kind"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ouroboros_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ouroboros_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ouroboros_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSubAgents: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ouroboros_active_subagents",
				Help: "Current number of running sub-agents by kind",
			},
			[]string{"kind"},
		),

		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ouroboros_session_duration_seconds",
				Help:    "Duration of a session from start to terminal result",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800},
			},
		),

		ContextPressure: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ouroboros_context_pressure_ratio",
				Help:    "Sampled prompt_tokens / window ratio at each turn",
				Buckets: []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
			},
		),

		ContextActionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ouroboros_context_actions_total",
				Help: "Total number of context manager actions by kind",
			},
			[]string{"action"},
		),

		SessionRestarts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ouroboros_session_restarts_total",
				Help: "Total number of ContextFull-triggered session restarts",
			},
		),
	}
}

// RecordLLMRequest records metrics for a completion request.
func (m *Metrics) RecordLLMRequest(model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error kind.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SubAgentStarted increments the active sub-agent gauge for the given kind.
func (m *Metrics) SubAgentStarted(kind string) {
	m.ActiveSubAgents.WithLabelValues(kind).Inc()
}

// SubAgentEnded decrements the active sub-agent gauge for the given kind.
func (m *Metrics) SubAgentEnded(kind string) {
	m.ActiveSubAgents.WithLabelValues(kind).Dec()
}

// RecordContextAction samples the pressure ratio and counts the chosen action.
func (m *Metrics) RecordContextAction(ratio float64, action string) {
	m.ContextPressure.Observe(ratio)
	m.ContextActionCounter.WithLabelValues(action).Inc()
	if action == "restart" {
		m.SessionRestarts.Inc()
	}
}

// SessionEnded records the total lifetime of a just-ended session.
func (m *Metrics) SessionEnded(durationSeconds float64) {
	m.SessionDuration.Observe(durationSeconds)
}
