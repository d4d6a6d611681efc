// Package orchestrator runs assistant turns: it asks a model for the next
// step, streams its text into the session and dispatches the tools it calls.
package orchestrator

import (
	"context"

	"github.com/otherjamesbrown/meetchat/pkg/chat"
	"github.com/otherjamesbrown/meetchat/pkg/tools"
)

// ToolCall is a tool call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// StepRequest is the input of one model step.
type StepRequest struct {
	System  string
	History []*chat.Message
	Tools   []tools.Descriptor
}

// StepResult is the output of one model step. A step without tool calls ends
// the turn.
type StepResult struct {
	Text      string
	ToolCalls []ToolCall
}

// Model produces one completion step. Text is streamed through onText as it
// arrives; the full text is also returned in the result.
type Model interface {
	Name() string
	Step(ctx context.Context, req StepRequest, onText func(string)) (*StepResult, error)
}
