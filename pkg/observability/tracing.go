package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for assistant operations.
const TracerName = "meetchat"

// Span attribute keys
const (
	AttrMeetingID = "meeting_id"
	AttrTool      = "tool"
	AttrOutcome   = "outcome"
	AttrTurnID    = "turn_id"
	AttrModel     = "model"
	AttrStep      = "step"
	AttrErrorCode = "error_code"
)

// Span names
const (
	SpanToolCall  = "meetchat.tool_call"
	SpanTurn      = "meetchat.turn"
	SpanModelStep = "meetchat.model_step"
)

// Tracer starts spans for assistant operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartToolSpan starts a span for one tool call.
func (t *Tracer) StartToolSpan(ctx context.Context, meetingID, tool string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanToolCall,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
			attribute.String(AttrTool, tool),
		),
	)
}

// StartTurnSpan starts the root span of an assistant turn.
func (t *Tracer) StartTurnSpan(ctx context.Context, meetingID, turnID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanTurn,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
			attribute.String(AttrTurnID, turnID),
		),
	)
}

// StartModelSpan starts a span for one model completion step.
func (t *Tracer) StartModelSpan(ctx context.Context, model string, step int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanModelStep,
		trace.WithAttributes(
			attribute.String(AttrModel, model),
			attribute.Int(AttrStep, step),
		),
	)
}

// SpanHelper sets common attributes on a span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetOutcome records the tool outcome.
func (h *SpanHelper) SetOutcome(outcome string) {
	h.span.SetAttributes(attribute.String(AttrOutcome, outcome))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorCode, code))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
