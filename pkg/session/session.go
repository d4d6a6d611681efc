// Package session holds the state of one meeting conversation: turn
// sequencing, the streamed assistant reply, search, scroll tracking and export.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/otherjamesbrown/meetchat/pkg/chat"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/observability"
)

// State is the conversation state.
type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrBusy is returned by Submit while a reply is in flight.
	ErrBusy = fmt.Errorf("a response is already in progress: %w", mcerrors.ErrInvalidState)

	// ErrEmptyInput is returned by Submit for blank input.
	ErrEmptyInput = fmt.Errorf("message is empty: %w", mcerrors.ErrValidation)

	// ErrStaleTurn is returned for deltas of a turn that has finished or was
	// discarded by Reset.
	ErrStaleTurn = fmt.Errorf("delta for a stale turn: %w", mcerrors.ErrInvalidState)
)

// DefaultFailureText is shown when a turn fails without an explanation.
const DefaultFailureText = "Sorry, I couldn't complete that request. Please try again."

// IncompleteToolText resolves tool calls still pending when a turn ends.
const IncompleteToolText = "The tool call did not complete."

// Config configures a Session.
type Config struct {
	// Title and Date of the meeting, used in exports.
	Title string
	Date  string

	Logger  logging.Logger
	Metrics *observability.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Session is one conversation about a meeting. All methods are safe for
// concurrent use; mutations are serialized by a single lock, so a delta is
// never interleaved with another delta or with Reset.
type Session struct {
	mu sync.Mutex

	title   string
	date    string
	logger  logging.Logger
	metrics *observability.Metrics
	now     func() time.Time

	messages  []*chat.Message
	state     State
	turn      uint64
	current   *chat.Message
	turnStart time.Time

	search searchState
	scroll scrollState
}

// New creates an idle session.
func New(cfg Config) *Session {
	s := &Session{
		title:   cfg.Title,
		date:    cfg.Date,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		scroll:  scrollState{atBottom: true},
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With(logging.F("component", "session"))
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turn returns the id of the latest turn.
func (s *Session) Turn() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.messages)
}

// Submit appends a user message and an empty assistant message for the reply,
// and moves to AwaitingResponse. It returns the id of the new turn.
func (s *Session) Submit(text string) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == AwaitingResponse {
		return 0, ErrBusy
	}

	s.turn++
	s.state = AwaitingResponse
	s.turnStart = s.now()

	user := chat.NewMessage(chat.RoleUser, text)
	user.CreatedAt = s.turnStart
	s.current = chat.NewMessage(chat.RoleAssistant, "")
	s.current.CreatedAt = s.turnStart
	s.messages = append(s.messages, user, s.current)

	// The user's own message always scrolls into view.
	s.scroll.jumpToBottom()

	s.logger.Debug("Turn submitted", logging.F("turn", s.turn))
	return s.turn, nil
}

// Conversation returns the messages before the in-flight assistant message,
// the history a model should see for the current turn.
func (s *Session) Conversation() []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if s.current != nil && len(msgs) > 0 && msgs[len(msgs)-1] == s.current {
		msgs = msgs[:len(msgs)-1]
	}
	return cloneAll(msgs)
}

// Apply applies one delta atomically.
func (s *Session) Apply(d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != AwaitingResponse || d.Turn != s.turn {
		return ErrStaleTurn
	}

	switch d.Kind {
	case DeltaText:
		s.current.AppendText(d.Text)
	case DeltaPart:
		if err := s.current.AddPart(d.Part); err != nil {
			return err
		}
	case DeltaDone:
		s.closePending()
		s.finish(observability.TurnCompleted)
		return nil
	case DeltaFail:
		s.closePending()
		text := d.Text
		if strings.TrimSpace(text) == "" {
			text = DefaultFailureText
		}
		if s.current.Content != "" {
			text = "\n\n" + text
		}
		s.current.AppendText(text)
		s.logger.Warn("Turn failed", logging.F("turn", s.turn), logging.Err(d.Err))
		s.finish(observability.TurnFailed)
	default:
		return fmt.Errorf("unknown delta kind %d: %w", d.Kind, mcerrors.ErrValidation)
	}

	s.scroll.contentAdded()
	return nil
}

// closePending resolves the reply's unanswered tool calls as errors so a
// finished message never carries a pending invocation.
func (s *Session) closePending() {
	for _, inv := range s.current.PendingInvocations() {
		s.logger.Warn("Tool call left pending at end of turn",
			logging.F("turn", s.turn),
			logging.F("tool", inv.Tool),
			logging.F("call_id", inv.CallID))
		if err := s.current.AddToolResult(inv.CallID, inv.Tool, IncompleteToolText, false); err != nil {
			s.logger.Error("Failed to close tool call", logging.F("call_id", inv.CallID), logging.Err(err))
		}
	}
}

func (s *Session) finish(status string) {
	s.metrics.RecordTurn(status, s.now().Sub(s.turnStart).Seconds())
	s.state = Idle
	s.current = nil
}

// Run applies deltas from ch in order until ch is closed or ctx is done.
// Stale deltas are dropped; other apply errors are logged and the stream
// continues.
func (s *Session) Run(ctx context.Context, ch <-chan Delta) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.Apply(d); err != nil {
				if errors.Is(err, ErrStaleTurn) {
					s.logger.Debug("Dropped stale delta", logging.F("turn", d.Turn))
					continue
				}
				s.logger.Warn("Failed to apply delta", logging.F("turn", d.Turn), logging.Err(err))
			}
		}
	}
}

// Reset clears the conversation and returns to Idle. Deltas of the discarded
// turn are rejected from then on.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == AwaitingResponse {
		s.metrics.RecordTurn(observability.TurnReset, s.now().Sub(s.turnStart).Seconds())
	}
	s.messages = nil
	s.current = nil
	s.state = Idle
	s.turn++
	s.search = searchState{}
	s.scroll = scrollState{atBottom: true}
	s.logger.Debug("Session reset", logging.F("turn", s.turn))
}

func cloneAll(msgs []*chat.Message) []*chat.Message {
	out := make([]*chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
