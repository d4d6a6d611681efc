package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

type wireMessage struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"createdAt"`
	Parts     []json.RawMessage `json:"parts"`
}

type partTag struct {
	Type PartKind `json:"type"`
}

// MarshalJSON encodes the message with each part tagged by its kind.
func (m *Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt, Parts: []json.RawMessage{}}
	for _, p := range m.Parts {
		raw, err := MarshalPart(p)
		if err != nil {
			return nil, err
		}
		w.Parts = append(w.Parts, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a message. Parts with an unrecognized type are skipped.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID, m.Role, m.Content, m.CreatedAt = w.ID, w.Role, w.Content, w.CreatedAt
	m.Parts = nil
	for i, raw := range w.Parts {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		if p != nil {
			m.Parts = append(m.Parts, p)
		}
	}
	return nil
}

// MarshalPart encodes a part as a JSON object with a "type" tag.
func MarshalPart(p Part) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s part: %w", p.Kind(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(p.Kind())
	return json.Marshal(fields)
}

// UnmarshalPart decodes a tagged part. It returns nil, nil for unknown tags.
func UnmarshalPart(data []byte) (Part, error) {
	var tag partTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	var p Part
	switch tag.Type {
	case KindText:
		p = &Text{}
	case KindReasoning:
		p = &Reasoning{}
	case KindToolInvocation:
		p = &ToolInvocation{}
	case KindToolResult:
		p = &ToolResult{}
	case KindSource:
		p = &Source{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decoding %s part: %w", tag.Type, err)
	}
	return p, nil
}
