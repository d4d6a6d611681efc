package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/images"
)

// SearchTranscriptArgs are the arguments of searchTranscript.
type SearchTranscriptArgs struct {
	Query string `json:"query" jsonschema:"Word or phrase to look for, matched case-insensitively"`
}

// ParticipantArgs are the arguments of tools that optionally focus on one participant.
type ParticipantArgs struct {
	Participant string `json:"participant,omitempty" jsonschema:"Name of a participant; omit for everyone"`
}

// ActionItemsArgs are the arguments of extractActionItems.
type ActionItemsArgs struct {
	Assignee string `json:"assignee,omitempty" jsonschema:"Only return items assigned to this person"`
}

// DecisionsArgs are the arguments of extractKeyDecisions.
type DecisionsArgs struct {
	Topic string `json:"topic,omitempty" jsonschema:"Only return decisions mentioning this topic"`
}

// NoArgs is used by tools without parameters.
type NoArgs struct{}

// GenerateImageArgs are the arguments of generateImage.
type GenerateImageArgs struct {
	Description string `json:"description" jsonschema:"What the image should show"`
	Style       string `json:"style,omitempty" jsonschema:"Visual style: professional, creative or abstract"`
}

// ListImagesArgs are the arguments of listGeneratedImages.
type ListImagesArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of images to return, 1 to 50, default 10"`
	SortBy string `json:"sortBy,omitempty" jsonschema:"newest or oldest first, default newest"`
}

// Descriptor describes a tool to the orchestrator.
type Descriptor struct {
	Kind        Kind               `json:"-"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ParametersMap returns the parameter schema as a generic JSON object.
func (d Descriptor) ParametersMap() (map[string]any, error) {
	data, err := json.Marshal(d.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encoding %s schema: %w", d.Name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s schema: %w", d.Name, err)
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m, nil
}

type toolSchema struct {
	descriptor Descriptor
	resolved   *jsonschema.Resolved
}

func schemaFor[T any](k Kind, adjust func(*jsonschema.Schema)) (*toolSchema, error) {
	s, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("building %s schema: %w", k, err)
	}
	if adjust != nil {
		adjust(s)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving %s schema: %w", k, err)
	}
	return &toolSchema{
		descriptor: Descriptor{Kind: k, Name: k.String(), Description: k.Description(), Parameters: s},
		resolved:   resolved,
	}, nil
}

func enumOf[T ~string](values ...T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func buildSchemas() (map[Kind]*toolSchema, error) {
	schemas := make(map[Kind]*toolSchema, numKinds)
	for _, k := range Kinds() {
		var ts *toolSchema
		var err error
		switch k {
		case SearchTranscript:
			ts, err = schemaFor[SearchTranscriptArgs](k, nil)
		case GetParticipantStats, AnalyzeMeetingSentiment:
			ts, err = schemaFor[ParticipantArgs](k, nil)
		case ExtractActionItems:
			ts, err = schemaFor[ActionItemsArgs](k, nil)
		case ExtractKeyDecisions:
			ts, err = schemaFor[DecisionsArgs](k, nil)
		case GetMeetingSummary, GetMeetingMetadata, IdentifyTopics, FindSchedulingInfo, FindPeopleMentioned:
			ts, err = schemaFor[NoArgs](k, nil)
		case GenerateImage:
			ts, err = schemaFor[GenerateImageArgs](k, func(s *jsonschema.Schema) {
				s.Properties["style"].Enum = enumOf(images.Styles...)
			})
		case ListGeneratedImages:
			ts, err = schemaFor[ListImagesArgs](k, func(s *jsonschema.Schema) {
				s.Properties["sortBy"].Enum = enumOf(images.Newest, images.Oldest)
			})
		default:
			err = fmt.Errorf("no schema for %s", k)
		}
		if err != nil {
			return nil, err
		}
		schemas[k] = ts
	}
	return schemas, nil
}

// newArgs returns a pointer to the zero argument struct for k.
func newArgs(k Kind) any {
	switch k {
	case SearchTranscript:
		return &SearchTranscriptArgs{}
	case GetParticipantStats, AnalyzeMeetingSentiment:
		return &ParticipantArgs{}
	case ExtractActionItems:
		return &ActionItemsArgs{}
	case ExtractKeyDecisions:
		return &DecisionsArgs{}
	case GenerateImage:
		return &GenerateImageArgs{}
	case ListGeneratedImages:
		return &ListImagesArgs{}
	default:
		return &NoArgs{}
	}
}

// decodeArgs parses raw tool arguments, repairing malformed JSON, validates
// them against the tool's schema and decodes them into the argument struct.
// repaired reports whether jsonrepair had to fix the payload.
func decodeArgs(ts *toolSchema, raw string) (args any, repaired bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		raw = "{}"
	}

	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, false, fmt.Errorf("arguments: %v: %w", err, mcerrors.ErrValidation)
		}
		fixed, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, false, fmt.Errorf("arguments are not valid JSON: %w", mcerrors.ErrValidation)
		}
		if err := json.Unmarshal([]byte(fixed), &instance); err != nil {
			return nil, false, fmt.Errorf("arguments are not valid JSON: %w", mcerrors.ErrValidation)
		}
		raw, repaired = fixed, true
	}

	if err := ts.resolved.Validate(instance); err != nil {
		return nil, repaired, fmt.Errorf("%v: %w", err, mcerrors.ErrValidation)
	}

	args = newArgs(ts.descriptor.Kind)
	if err := json.Unmarshal([]byte(raw), args); err != nil {
		return nil, repaired, fmt.Errorf("arguments: %v: %w", err, mcerrors.ErrValidation)
	}
	return args, repaired, nil
}
