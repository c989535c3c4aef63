// Package observability exposes Prometheus instrumentation for the decision
// pipeline. All methods are nil-receiver safe so callers can leave metrics
// unconfigured in tests.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	ToolCalls       *prometheus.CounterVec
	Escalations     *prometheus.CounterVec
	Messages        prometheus.Counter
	ActiveOverrides prometheus.Gauge
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resolvd",
			Name:      "decisions_total",
			Help:      "Workflow engine decisions by workflow and action.",
		}, []string{"workflow", "action"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resolvd",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resolvd",
			Name:      "escalations_total",
			Help:      "Escalations by priority.",
		}, []string{"priority"}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "resolvd",
			Name:      "messages_total",
			Help:      "Customer messages processed.",
		}),
		ActiveOverrides: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "resolvd",
			Name:      "active_overrides",
			Help:      "Currently active policy overrides.",
		}),
	}
	reg.MustRegister(m.Decisions, m.ToolCalls, m.Escalations, m.Messages, m.ActiveOverrides)
	return m
}

// ObserveDecision records an engine decision.
func (m *Metrics) ObserveDecision(workflow, action string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(workflow, action).Inc()
}

// ObserveToolCall records one tool execution outcome.
func (m *Metrics) ObserveToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveEscalation records an escalation.
func (m *Metrics) ObserveEscalation(priority string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(priority).Inc()
}

// ObserveMessage records one processed customer message.
func (m *Metrics) ObserveMessage() {
	if m == nil {
		return
	}
	m.Messages.Inc()
}

// SetActiveOverrides updates the active override gauge.
func (m *Metrics) SetActiveOverrides(n int) {
	if m == nil {
		return
	}
	m.ActiveOverrides.Set(float64(n))
}
