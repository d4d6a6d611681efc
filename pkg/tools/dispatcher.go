package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/images"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/observability"
	"github.com/otherjamesbrown/meetchat/pkg/sentiment"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// ImageGenerator renders an image from a prompt and returns its URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, style images.Style) (string, error)
}

// Config holds the collaborators of a Dispatcher. Meetings is required; the
// other fields fall back to in-memory or disabled implementations.
type Config struct {
	Meetings       meeting.Store
	Images         images.Store
	Sentiment      sentiment.Classifier
	ImageGenerator ImageGenerator
	Logger         logging.Logger
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Dispatcher validates and runs tool calls. It is safe for concurrent use;
// the only state shared between calls is the per-meeting image write lock.
type Dispatcher struct {
	meetings  meeting.Store
	images    images.Store
	sentiment sentiment.Classifier
	generator ImageGenerator
	logger    logging.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	schemas    map[Kind]*toolSchema
	imageLocks sync.Map // meeting id -> *sync.Mutex
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Meetings == nil {
		return nil, fmt.Errorf("meeting store is required: %w", mcerrors.ErrValidation)
	}

	schemas, err := buildSchemas()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		meetings:  cfg.Meetings,
		images:    cfg.Images,
		sentiment: cfg.Sentiment,
		generator: cfg.ImageGenerator,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		schemas:   schemas,
	}
	if d.images == nil {
		d.images = images.NewMemoryStore()
	}
	if d.sentiment == nil {
		d.sentiment = sentiment.NewLexiconClassifier()
	}
	if d.logger == nil {
		d.logger = logging.NewNopLogger()
	}
	if d.tracer == nil {
		d.tracer = observability.NewTracer()
	}
	d.logger = d.logger.With(logging.F("component", "tool_dispatcher"))
	return d, nil
}

// Descriptors returns the catalog in a stable order.
func (d *Dispatcher) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, numKinds)
	for _, k := range Kinds() {
		out = append(out, d.schemas[k].descriptor)
	}
	return out
}

// Bind returns the catalog bound to one meeting.
func (d *Dispatcher) Bind(meetingID string) *Toolbox {
	return &Toolbox{d: d, meetingID: meetingID}
}

// Toolbox runs tools against one meeting.
type Toolbox struct {
	d         *Dispatcher
	meetingID string
}

// MeetingID returns the meeting the toolbox is bound to.
func (tb *Toolbox) MeetingID() string {
	return tb.meetingID
}

// Descriptors returns the tool descriptors.
func (tb *Toolbox) Descriptors() []Descriptor {
	return tb.d.Descriptors()
}

// Call validates rawArgs against the named tool's schema and runs it. Call
// never panics and never returns an error: every failure is a Result.
func (tb *Toolbox) Call(ctx context.Context, name, rawArgs string) (res Result) {
	start := time.Now()
	logger := tb.d.logger.WithContext(ctx).With(
		logging.F("tool", name),
		logging.F("meeting_id", tb.meetingID),
	)

	ctx, span := tb.d.tracer.StartToolSpan(ctx, tb.meetingID, name)
	spanHelper := observability.NewSpanHelper(span)
	defer span.End()

	kind, err := ParseKind(name)

	defer func() {
		outcome := res.Outcome()
		if r := recover(); r != nil {
			logger.Error("Tool panicked",
				logging.F("panic", fmt.Sprint(r)),
				logging.F("stack", string(debug.Stack())))
			res = Result{Tool: name, Text: msgInternal, Failure: mcerrors.FailureInternal}
			outcome = observability.OutcomePanic
			spanHelper.SetError(fmt.Errorf("panic: %v", r), string(mcerrors.FailureInternal))
		}
		if err == nil && kind == GenerateImage && res.Data == nil {
			res.Data = ImageResult{Success: res.Success, Message: res.Text}
		}
		spanHelper.SetOutcome(outcome)
		tb.d.metrics.RecordToolCall(name, outcome, time.Since(start).Seconds())
	}()

	if err != nil {
		return Result{
			Tool:    name,
			Text:    fmt.Sprintf("There is no tool named %q.", name),
			Failure: mcerrors.FailureMalformedInput,
		}
	}

	args, repaired, derr := decodeArgs(tb.d.schemas[kind], rawArgs)
	if repaired {
		tb.d.metrics.RecordArgRepair(kind.String())
		logger.Debug("Repaired malformed tool arguments")
	}
	if derr != nil {
		logger.Warn("Rejected tool arguments", logging.Err(derr))
		return Result{
			Tool:    kind.String(),
			Text:    fmt.Sprintf("The arguments for %s were invalid: %s", kind, validationReason(derr)),
			Failure: mcerrors.FailureMalformedInput,
		}
	}

	res = tb.execute(ctx, kind, args)
	if res.Success {
		spanHelper.SetSuccess()
	}
	return res
}

// execute is the single dispatch point for the catalog.
func (tb *Toolbox) execute(ctx context.Context, k Kind, args any) Result {
	var res Result
	var err error

	switch k {
	case SearchTranscript:
		res, err = tb.searchTranscript(ctx, args.(*SearchTranscriptArgs))
	case GetParticipantStats:
		res, err = tb.participantStats(ctx, args.(*ParticipantArgs))
	case ExtractActionItems:
		res, err = tb.actionItems(ctx, args.(*ActionItemsArgs))
	case GetMeetingSummary:
		res, err = tb.meetingSummary(ctx)
	case ExtractKeyDecisions:
		res, err = tb.keyDecisions(ctx, args.(*DecisionsArgs))
	case GetMeetingMetadata:
		res, err = tb.meetingMetadata(ctx)
	case IdentifyTopics:
		res, err = tb.topics(ctx)
	case FindSchedulingInfo:
		res, err = tb.schedulingInfo(ctx)
	case AnalyzeMeetingSentiment:
		res, err = tb.meetingSentiment(ctx, args.(*ParticipantArgs))
	case FindPeopleMentioned:
		res, err = tb.peopleMentioned(ctx)
	case GenerateImage:
		res, err = tb.generateImage(ctx, args.(*GenerateImageArgs))
	case ListGeneratedImages:
		res, err = tb.listImages(ctx, args.(*ListImagesArgs))
	default:
		err = fmt.Errorf("tool %s has no implementation", k)
	}

	if err != nil {
		return tb.failure(ctx, k, err)
	}
	return res
}

// failure converts an error into conversational content. Errors raised as
// *ToolError carry a user-safe message; anything else is logged and replaced
// by a generic message for its failure code.
func (tb *Toolbox) failure(ctx context.Context, k Kind, err error) Result {
	var te *mcerrors.ToolError
	if errors.As(err, &te) {
		if te.Cause != nil {
			tb.d.logger.WithContext(ctx).Warn("Tool failed",
				logging.F("tool", k.String()),
				logging.F("meeting_id", tb.meetingID),
				logging.F("code", string(te.Code)),
				logging.Err(te.Cause))
		}
		return Result{
			Tool:      k.String(),
			Text:      te.Message,
			Success:   te.Code == mcerrors.FailureEmptyResult,
			Failure:   te.Code,
			Retryable: mcerrors.IsRetryable(te),
		}
	}

	te = mcerrors.Classify(err, k.String())
	tb.d.logger.WithContext(ctx).Error("Tool failed",
		logging.F("tool", k.String()),
		logging.F("meeting_id", tb.meetingID),
		logging.F("code", string(te.Code)),
		logging.Err(err))

	retryable := mcerrors.IsRetryable(te)
	text := msgInternal
	switch {
	case te.Code == mcerrors.FailureCancelled:
		text = msgCancelled
	case retryable:
		text = msgUnavailable
	}
	return Result{Tool: k.String(), Text: text, Failure: te.Code, Retryable: retryable}
}

func validationReason(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+mcerrors.ErrValidation.Error())
}

// imageLock returns the write lock for a meeting's image collection.
func (d *Dispatcher) imageLock(meetingID string) *sync.Mutex {
	mu, _ := d.imageLocks.LoadOrStore(meetingID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// loadMeeting fetches the bound meeting, mapping absence to the "Meeting not
// found." sentinel.
func (tb *Toolbox) loadMeeting(ctx context.Context) (*meeting.Meeting, error) {
	m, err := tb.d.meetings.GetMeeting(ctx, tb.meetingID)
	if err != nil {
		if mcerrors.IsNotFound(err) {
			return nil, notFound(msgMeetingNotFound)
		}
		return nil, err
	}
	return m, nil
}

// loadTranscript fetches the meeting and its transcript. An empty transcript
// is treated as absent.
func (tb *Toolbox) loadTranscript(ctx context.Context) (*meeting.Meeting, *transcript.Transcript, error) {
	m, err := tb.loadMeeting(ctx)
	if err != nil {
		return nil, nil, err
	}
	t, err := tb.d.meetings.GetTranscript(ctx, tb.meetingID)
	if err != nil {
		if mcerrors.IsNotFound(err) {
			return m, nil, notFound(msgNoTranscript)
		}
		return m, nil, err
	}
	if t.Empty() {
		return m, nil, notFound(msgNoTranscript)
	}
	return m, t, nil
}

// loadSummary returns the persisted summary, or nil when none exists.
func (tb *Toolbox) loadSummary(ctx context.Context) (*meeting.Summary, error) {
	s, err := tb.d.meetings.GetSummary(ctx, tb.meetingID)
	if err != nil {
		if mcerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// loadOptionalTranscript returns the transcript, or nil when none exists.
func (tb *Toolbox) loadOptionalTranscript(ctx context.Context) (*transcript.Transcript, error) {
	t, err := tb.d.meetings.GetTranscript(ctx, tb.meetingID)
	if err != nil {
		if mcerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if t.Empty() {
		return nil, nil
	}
	return t, nil
}
