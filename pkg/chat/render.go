package chat

import (
	"fmt"
	"strings"
)

// PlainRenderer renders parts as plain text, one block per part.
type PlainRenderer struct {
	// ShowTools includes tool invocations and results.
	ShowTools bool

	blocks []string
}

var _ Visitor = (*PlainRenderer)(nil)

func (r *PlainRenderer) VisitText(p *Text) {
	if s := strings.TrimSpace(p.Text); s != "" {
		r.blocks = append(r.blocks, s)
	}
}

func (r *PlainRenderer) VisitReasoning(*Reasoning) {}

func (r *PlainRenderer) VisitToolInvocation(p *ToolInvocation) {
	if r.ShowTools {
		r.blocks = append(r.blocks, fmt.Sprintf("[tool %s %s] %s", p.Tool, p.State, p.Args))
	}
}

func (r *PlainRenderer) VisitToolResult(p *ToolResult) {
	if r.ShowTools {
		r.blocks = append(r.blocks, fmt.Sprintf("[result %s] %s", p.ToolName, p.Result))
	}
}

func (r *PlainRenderer) VisitSource(p *Source) {
	if p.URL != "" {
		r.blocks = append(r.blocks, fmt.Sprintf("Source: %s (%s)", p.Citation, p.URL))
		return
	}
	r.blocks = append(r.blocks, "Source: "+p.Citation)
}

// String returns the rendered blocks separated by blank lines.
func (r *PlainRenderer) String() string {
	return strings.Join(r.blocks, "\n\n")
}

// Render renders a message's parts as plain text. Messages without parts fall
// back to their content.
func Render(m *Message, showTools bool) string {
	if len(m.Parts) == 0 {
		return strings.TrimSpace(m.Content)
	}
	r := &PlainRenderer{ShowTools: showTools}
	VisitAll(m.Parts, r)
	return r.String()
}
