package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/meetchat/pkg/chat"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/observability"
	"github.com/otherjamesbrown/meetchat/pkg/session"
	"github.com/otherjamesbrown/meetchat/pkg/tools"
)

// DefaultMaxSteps bounds the model steps of one turn.
const DefaultMaxSteps = 5

// DefaultSystemPrompt instructs the model to answer from the meeting tools.
const DefaultSystemPrompt = `You are a meeting assistant. Answer questions about one meeting using the tools provided.
Prefer calling a tool over guessing. Quote the transcript with its timestamps when it helps.
If a tool reports that information is unavailable, say so plainly.`

const (
	msgModelUnavailable = "I couldn't reach the assistant right now. Please try again in a moment."
	msgStepLimit        = "I wasn't able to finish answering within the allowed number of steps. Please try a more specific question."
)

// Runner runs assistant turns against one model.
type Runner struct {
	model    Model
	system   string
	maxSteps int
	logger   logging.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Model        Model
	SystemPrompt string
	MaxSteps     int
	Logger       logging.Logger
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required: %w", mcerrors.ErrValidation)
	}
	r := &Runner{
		model:    cfg.Model,
		system:   cfg.SystemPrompt,
		maxSteps: cfg.MaxSteps,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}
	if r.system == "" {
		r.system = DefaultSystemPrompt
	}
	if r.maxSteps <= 0 {
		r.maxSteps = DefaultMaxSteps
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	if r.tracer == nil {
		r.tracer = observability.NewTracer()
	}
	r.logger = r.logger.With(logging.F("component", "orchestrator"))
	return r, nil
}

// RunTurn submits text to the session and runs the turn to completion. Model
// failures end the turn with an explanation in the conversation and are
// returned. If the session is reset while the turn runs, RunTurn stops and
// returns session.ErrStaleTurn.
func (r *Runner) RunTurn(ctx context.Context, s *session.Session, tb *tools.Toolbox, text string) error {
	turn, err := s.Submit(text)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, logging.TurnIDKey, strconv.FormatUint(turn, 10))
	ctx = context.WithValue(ctx, logging.MeetingIDKey, tb.MeetingID())
	ctx, span := r.tracer.StartTurnSpan(ctx, tb.MeetingID(), strconv.FormatUint(turn, 10))
	defer span.End()
	spanHelper := observability.NewSpanHelper(span)
	logger := r.logger.WithContext(ctx)

	err = r.runSteps(ctx, s, tb, turn)
	switch {
	case err == nil:
		spanHelper.SetSuccess()
		return s.Apply(session.DoneDelta(turn))
	case errors.Is(err, session.ErrStaleTurn):
		logger.Debug("Turn discarded")
		return err
	default:
		code := mcerrors.Classify(err, "").Code
		spanHelper.SetError(err, string(code))
		logger.Error("Turn failed", logging.Err(err))

		explanation := msgModelUnavailable
		if code == mcerrors.FailureCancelled {
			explanation = "The request was cancelled."
		}
		if aerr := s.Apply(session.FailDelta(turn, explanation, err)); aerr != nil && !errors.Is(aerr, session.ErrStaleTurn) {
			return aerr
		}
		return err
	}
}

func (r *Runner) runSteps(ctx context.Context, s *session.Session, tb *tools.Toolbox, turn uint64) error {
	history := s.Conversation()
	reply := chat.NewMessage(chat.RoleAssistant, "")
	descriptors := tb.Descriptors()

	for step := 1; step <= r.maxSteps; step++ {
		var applyErr error
		onText := func(delta string) {
			if applyErr != nil {
				return
			}
			if applyErr = s.Apply(session.TextDelta(turn, delta)); applyErr == nil {
				reply.AppendText(delta)
			}
		}

		stepCtx, span := r.tracer.StartModelSpan(ctx, r.model.Name(), step)
		start := time.Now()
		res, err := r.model.Step(stepCtx, StepRequest{
			System:  r.system,
			History: append(append([]*chat.Message{}, history...), reply.Clone()),
			Tools:   descriptors,
		}, onText)
		span.End()
		r.metrics.RecordModelStep(r.model.Name())

		if applyErr != nil {
			return applyErr
		}
		if err != nil {
			return fmt.Errorf("model step %d: %w", step, err)
		}
		r.logger.WithContext(ctx).Debug("Model step complete",
			logging.F("step", step),
			logging.F("tool_calls", len(res.ToolCalls)),
			logging.F("duration_ms", time.Since(start).Milliseconds()))

		if len(res.ToolCalls) == 0 {
			return nil
		}
		for _, call := range res.ToolCalls {
			if err := r.callTool(ctx, s, tb, turn, reply, call); err != nil {
				return err
			}
		}
	}

	r.logger.WithContext(ctx).Warn("Step limit reached", logging.F("max_steps", r.maxSteps))
	if reply.Content != "" {
		if err := s.Apply(session.TextDelta(turn, "\n\n")); err != nil {
			return err
		}
	}
	return s.Apply(session.TextDelta(turn, msgStepLimit))
}

func (r *Runner) callTool(ctx context.Context, s *session.Session, tb *tools.Toolbox, turn uint64, reply *chat.Message, call ToolCall) error {
	if call.ID == "" {
		call.ID = "call_" + uuid.New().String()
	}

	inv := &chat.ToolInvocation{CallID: call.ID, Tool: call.Name, Args: call.Arguments, State: chat.StatePending}
	if err := s.Apply(session.PartDelta(turn, inv)); err != nil {
		return err
	}
	if err := reply.AddPart(inv); err != nil {
		return err
	}

	res := tb.Call(ctx, call.Name, call.Arguments)

	result := &chat.ToolResult{CallID: call.ID, ToolName: call.Name, Result: res.Content(), Success: res.Success}
	if err := s.Apply(session.PartDelta(turn, result)); err != nil {
		return err
	}
	return reply.AddPart(result)
}
