// Package observability provides metrics and tracing for tool dispatch and
// conversation turns.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tool call outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomePanic    = "panic"
)

// Turn statuses
const (
	TurnCompleted = "completed"
	TurnFailed    = "failed"
	TurnReset     = "reset"
)

// Metrics holds the Prometheus metrics for the assistant engine.
type Metrics struct {
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallSeconds  *prometheus.HistogramVec
	ArgRepairsTotal  *prometheus.CounterVec
	TurnsTotal       *prometheus.CounterVec
	TurnSeconds      prometheus.Histogram
	ModelStepsTotal  *prometheus.CounterVec
	ImagesSavedTotal prometheus.Counter
}

// NewMetrics creates and registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetchat_tool_calls_total",
				Help: "Total tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolCallSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetchat_tool_call_seconds",
				Help:    "Tool execution latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ArgRepairsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetchat_tool_argument_repairs_total",
				Help: "Malformed tool arguments that were repaired before validation",
			},
			[]string{"tool"},
		),
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetchat_turns_total",
				Help: "Conversation turns by final status",
			},
			[]string{"status"},
		),
		TurnSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meetchat_turn_seconds",
				Help:    "End-to-end assistant turn latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
			},
		),
		ModelStepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetchat_model_steps_total",
				Help: "Model completion steps by model",
			},
			[]string{"model"},
		),
		ImagesSavedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meetchat_images_saved_total",
				Help: "Generated images persisted",
			},
		),
	}
}

// RecordToolCall records one dispatched tool call.
func (m *Metrics) RecordToolCall(tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.ToolCallSeconds.WithLabelValues(tool).Observe(seconds)
}

// RecordArgRepair records a repaired argument payload.
func (m *Metrics) RecordArgRepair(tool string) {
	if m == nil {
		return
	}
	m.ArgRepairsTotal.WithLabelValues(tool).Inc()
}

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(status string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnSeconds.Observe(seconds)
}

// RecordModelStep records one model completion step.
func (m *Metrics) RecordModelStep(model string) {
	if m == nil {
		return
	}
	m.ModelStepsTotal.WithLabelValues(model).Inc()
}

// RecordImageSaved records a persisted image.
func (m *Metrics) RecordImageSaved() {
	if m == nil {
		return
	}
	m.ImagesSavedTotal.Inc()
}
