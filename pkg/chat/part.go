package chat

// PartKind is the wire tag of a Part.
type PartKind string

const (
	KindText           PartKind = "text"
	KindReasoning      PartKind = "reasoning"
	KindToolInvocation PartKind = "tool-invocation"
	KindToolResult     PartKind = "tool-result"
	KindSource         PartKind = "source"
)

// InvocationState tracks a tool invocation through its lifecycle.
type InvocationState string

const (
	StatePending InvocationState = "pending"
	StateResult  InvocationState = "result"
	StateError   InvocationState = "error"
)

// Part is one typed segment of a message. The set of parts is closed: every
// implementation lives in this package and is handled by Visit.
type Part interface {
	Kind() PartKind
	isPart()
}

var (
	_ Part = (*Text)(nil)
	_ Part = (*Reasoning)(nil)
	_ Part = (*ToolInvocation)(nil)
	_ Part = (*ToolResult)(nil)
	_ Part = (*Source)(nil)
)

// Text is free-form model or user output.
type Text struct {
	Text string `json:"text"`
}

func (*Text) Kind() PartKind { return KindText }
func (*Text) isPart()        {}

// Reasoning is the model's exposed deliberation.
type Reasoning struct {
	Content string `json:"content"`
}

func (*Reasoning) Kind() PartKind { return KindReasoning }
func (*Reasoning) isPart()        {}

// ToolInvocation records a tool call requested by the model.
type ToolInvocation struct {
	CallID string          `json:"callId"`
	Tool   string          `json:"tool"`
	Args   string          `json:"args"`
	State  InvocationState `json:"state"`
}

func (*ToolInvocation) Kind() PartKind { return KindToolInvocation }
func (*ToolInvocation) isPart()        {}

// ToolResult is the outcome of a ToolInvocation with the same CallID.
type ToolResult struct {
	CallID   string `json:"callId"`
	ToolName string `json:"toolName"`
	Result   string `json:"result"`
	Success  bool   `json:"success"`
}

func (*ToolResult) Kind() PartKind { return KindToolResult }
func (*ToolResult) isPart()        {}

// Source is a citation.
type Source struct {
	Citation string `json:"citation"`
	URL      string `json:"url,omitempty"`
}

func (*Source) Kind() PartKind { return KindSource }
func (*Source) isPart()        {}

// Visitor handles every part kind. Adding a kind adds a method here, so every
// consumer fails to compile until it handles the new kind.
type Visitor interface {
	VisitText(*Text)
	VisitReasoning(*Reasoning)
	VisitToolInvocation(*ToolInvocation)
	VisitToolResult(*ToolResult)
	VisitSource(*Source)
}

// Visit dispatches p to the matching Visitor method.
func Visit(p Part, v Visitor) {
	switch p := p.(type) {
	case *Text:
		v.VisitText(p)
	case *Reasoning:
		v.VisitReasoning(p)
	case *ToolInvocation:
		v.VisitToolInvocation(p)
	case *ToolResult:
		v.VisitToolResult(p)
	case *Source:
		v.VisitSource(p)
	}
}

// VisitAll visits parts in order.
func VisitAll(parts []Part, v Visitor) {
	for _, p := range parts {
		Visit(p, v)
	}
}

// clonePart returns a deep copy of p.
func clonePart(p Part) Part {
	switch p := p.(type) {
	case *Text:
		c := *p
		return &c
	case *Reasoning:
		c := *p
		return &c
	case *ToolInvocation:
		c := *p
		return &c
	case *ToolResult:
		c := *p
		return &c
	case *Source:
		c := *p
		return &c
	default:
		return p
	}
}
