// Package chat defines conversation messages and the typed parts that make up
// one conversational turn.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Label returns the display form of the role ("Assistant").
func (r Role) Label() string {
	return cases.Title(language.English).String(string(r))
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one entry in a conversation. Content is the plain text of the
// message; Parts hold its renderable segments in order.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
	Parts     []Part
}

// NewMessage creates a message with a fresh id. Non-empty content is also
// recorded as a Text part.
func NewMessage(role Role, content string) *Message {
	m := &Message{
		ID:        uuid.New().String(),
		Role:      role,
		CreatedAt: time.Now(),
	}
	if content != "" {
		m.AppendText(content)
	}
	return m
}

// AppendText appends streamed text to the content and to the trailing Text
// part, starting a new Text part when the last part is of another kind.
func (m *Message) AppendText(delta string) {
	if delta == "" {
		return
	}
	m.Content += delta
	if n := len(m.Parts); n > 0 {
		if t, ok := m.Parts[n-1].(*Text); ok {
			t.Text += delta
			return
		}
	}
	m.Parts = append(m.Parts, &Text{Text: delta})
}

// AddPart appends a part. Tool parts must go through AddToolInvocation and
// AddToolResult so their pairing is checked.
func (m *Message) AddPart(p Part) error {
	switch p := p.(type) {
	case *Text:
		m.AppendText(p.Text)
		return nil
	case *ToolInvocation:
		return m.AddToolInvocation(p.CallID, p.Tool, p.Args)
	case *ToolResult:
		return m.AddToolResult(p.CallID, p.ToolName, p.Result, p.Success)
	case nil:
		return fmt.Errorf("nil part: %w", mcerrors.ErrValidation)
	default:
		m.Parts = append(m.Parts, clonePart(p))
		return nil
	}
}

// AddToolInvocation records a pending tool call. Call ids are unique within a
// message.
func (m *Message) AddToolInvocation(callID, tool, args string) error {
	if callID == "" || tool == "" {
		return fmt.Errorf("tool invocation requires a call id and tool name: %w", mcerrors.ErrValidation)
	}
	if m.invocation(callID) != nil {
		return fmt.Errorf("duplicate tool call id %q: %w", callID, mcerrors.ErrInvalidState)
	}
	m.Parts = append(m.Parts, &ToolInvocation{CallID: callID, Tool: tool, Args: args, State: StatePending})
	return nil
}

// AddToolResult resolves the pending invocation with the same call id and
// appends the result. A result without a matching pending invocation, or for
// a different tool, is rejected.
func (m *Message) AddToolResult(callID, toolName, result string, success bool) error {
	inv := m.invocation(callID)
	if inv == nil {
		return fmt.Errorf("no tool invocation with call id %q: %w", callID, mcerrors.ErrInvalidState)
	}
	if inv.State != StatePending {
		return fmt.Errorf("tool call %q already resolved: %w", callID, mcerrors.ErrInvalidState)
	}
	if toolName != "" && toolName != inv.Tool {
		return fmt.Errorf("tool call %q is for %s, not %s: %w", callID, inv.Tool, toolName, mcerrors.ErrInvalidState)
	}

	inv.State = StateResult
	if !success {
		inv.State = StateError
	}
	m.Parts = append(m.Parts, &ToolResult{CallID: callID, ToolName: inv.Tool, Result: result, Success: success})
	return nil
}

func (m *Message) invocation(callID string) *ToolInvocation {
	for _, p := range m.Parts {
		if inv, ok := p.(*ToolInvocation); ok && inv.CallID == callID {
			return inv
		}
	}
	return nil
}

// PendingInvocations returns the tool calls that have no result yet.
func (m *Message) PendingInvocations() []*ToolInvocation {
	var out []*ToolInvocation
	for _, p := range m.Parts {
		if inv, ok := p.(*ToolInvocation); ok && inv.State == StatePending {
			out = append(out, inv)
		}
	}
	return out
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	c.Parts = make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		c.Parts[i] = clonePart(p)
	}
	return &c
}

// Contains reports whether the content contains query, ignoring case. An
// empty query matches every message.
func (m *Message) Contains(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Content), strings.ToLower(q))
}
