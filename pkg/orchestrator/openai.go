package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/otherjamesbrown/meetchat/pkg/chat"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

const (
	finishReasonLength        = "length"
	finishReasonContentFilter = "content_filter"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAIModel.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// OpenAIModel is a Model backed by the OpenAI chat completions API, or any
// server compatible with it.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ Model = (*OpenAIModel)(nil)

// NewOpenAIModel creates an OpenAIModel.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required: %w", mcerrors.ErrValidation)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIModel{client: &client, model: model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

// Name returns the model name.
func (m *OpenAIModel) Name() string {
	return m.model
}

// Step implements Model with a streaming chat completion.
func (m *OpenAIModel) Step(ctx context.Context, req StepRequest, onText func(string)) (*StepResult, error) {
	params, err := m.params(req)
	if err != nil {
		return nil, err
	}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var text strings.Builder
	calls := make(map[int64]*ToolCall)
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if s := choice.Delta.Content; s != "" {
			text.WriteString(s)
			if onText != nil {
				onText(s)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			call, ok := calls[tc.Index]
			if !ok {
				call = &ToolCall{}
				calls[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			call.Name += tc.Function.Name
			call.Arguments += tc.Function.Arguments
		}

		switch choice.FinishReason {
		case finishReasonLength:
			return nil, fmt.Errorf("model response truncated: %w", mcerrors.ErrUpstream)
		case finishReasonContentFilter:
			return nil, fmt.Errorf("model response blocked by content filter: %w", mcerrors.ErrUpstream)
		}
		if s := choice.Delta.Refusal; s != "" {
			return nil, fmt.Errorf("model refused: %s: %w", s, mcerrors.ErrUpstream)
		}
	}
	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("chat completion failed: %v: %w", err, mcerrors.ErrUpstream)
	}

	return &StepResult{Text: text.String(), ToolCalls: orderedCalls(calls)}, nil
}

func orderedCalls(calls map[int64]*ToolCall) []ToolCall {
	indexes := make([]int64, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })

	out := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		if c := calls[i]; c.Name != "" {
			out = append(out, *c)
		}
	}
	return out
}

func (m *OpenAIModel) params(req StepRequest) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: convHistory(req.System, req.History),
	}
	if m.temperature > 0 {
		params.Temperature = param.NewOpt(m.temperature)
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(m.maxTokens)
	}
	for _, d := range req.Tools {
		schema, err := d.ParametersMap()
		if err != nil {
			return params, err
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: param.NewOpt(d.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return params, nil
}

// convHistory converts conversation messages to chat completion messages. An
// assistant message that called tools becomes an assistant message carrying
// the calls, followed by one tool message per result, followed by the text
// the model produced afterwards.
func convHistory(system string, history []*chat.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case chat.RoleAssistant:
			out = append(out, convAssistant(msg)...)
		}
	}
	return out
}

// assistantConverter walks an assistant message's parts.
type assistantConverter struct {
	out     []openai.ChatCompletionMessageParamUnion
	text    strings.Builder
	calls   []openai.ChatCompletionMessageToolCallParam
	results []openai.ChatCompletionMessageParamUnion
}

var _ chat.Visitor = (*assistantConverter)(nil)

func (c *assistantConverter) VisitText(p *chat.Text) {
	if len(c.calls) > 0 {
		c.flush()
	}
	c.text.WriteString(p.Text)
}

func (c *assistantConverter) VisitReasoning(*chat.Reasoning) {}

func (c *assistantConverter) VisitToolInvocation(p *chat.ToolInvocation) {
	c.calls = append(c.calls, openai.ChatCompletionMessageToolCallParam{
		ID: p.CallID,
		Function: openai.ChatCompletionMessageToolCallFunctionParam{
			Name:      p.Tool,
			Arguments: p.Args,
		},
	})
}

func (c *assistantConverter) VisitToolResult(p *chat.ToolResult) {
	c.results = append(c.results, openai.ToolMessage(p.Result, p.CallID))
}

func (c *assistantConverter) VisitSource(*chat.Source) {}

func (c *assistantConverter) flush() {
	if c.text.Len() == 0 && len(c.calls) == 0 {
		return
	}
	msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: c.calls}
	if c.text.Len() > 0 {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(c.text.String()),
		}
	}
	c.out = append(c.out, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})
	c.out = append(c.out, c.results...)
	c.text.Reset()
	c.calls = nil
	c.results = nil
}

func convAssistant(msg *chat.Message) []openai.ChatCompletionMessageParamUnion {
	if len(msg.Parts) == 0 {
		if msg.Content == "" {
			return nil
		}
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(msg.Content)}
	}
	c := &assistantConverter{}
	chat.VisitAll(msg.Parts, c)
	c.flush()
	return c.out
}
