// Package tools implements the catalog of meeting-analysis tools the assistant
// can call, and the dispatcher that validates arguments and runs them.
//
// Tools never fail across the dispatch boundary: every outcome, including
// missing data, malformed arguments, upstream failures and panics, is returned
// as a Result whose Text is safe to show in the conversation.
package tools

import (
	"fmt"
	"strings"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

// Kind identifies one tool in the closed catalog.
type Kind int

const (
	SearchTranscript Kind = iota
	GetParticipantStats
	ExtractActionItems
	GetMeetingSummary
	ExtractKeyDecisions
	GetMeetingMetadata
	IdentifyTopics
	FindSchedulingInfo
	AnalyzeMeetingSentiment
	FindPeopleMentioned
	GenerateImage
	ListGeneratedImages

	numKinds
)

var kindNames = [numKinds]string{
	SearchTranscript:        "searchTranscript",
	GetParticipantStats:     "getParticipantStats",
	ExtractActionItems:      "extractActionItems",
	GetMeetingSummary:       "getMeetingSummary",
	ExtractKeyDecisions:     "extractKeyDecisions",
	GetMeetingMetadata:      "getMeetingMetadata",
	IdentifyTopics:          "identifyTopics",
	FindSchedulingInfo:      "findSchedulingInfo",
	AnalyzeMeetingSentiment: "analyzeMeetingSentiment",
	FindPeopleMentioned:     "findPeopleMentioned",
	GenerateImage:           "generateImage",
	ListGeneratedImages:     "listGeneratedImages",
}

var kindDescriptions = [numKinds]string{
	SearchTranscript:        "Search the meeting transcript for a word or phrase and return timestamped excerpts.",
	GetParticipantStats:     "Count speaking turns per participant, or for one named participant.",
	ExtractActionItems:      "List the action items from the meeting, optionally only those for one assignee.",
	GetMeetingSummary:       "Return the stored summary of the meeting.",
	ExtractKeyDecisions:     "List the decisions made in the meeting, optionally only those about a topic.",
	GetMeetingMetadata:      "Return the meeting title, date, time, duration, provider, status and participant count.",
	IdentifyTopics:          "Identify the main topics discussed, ranked by how often they were mentioned.",
	FindSchedulingInfo:      "Find dates, days and deadlines mentioned in the meeting.",
	AnalyzeMeetingSentiment: "Analyze the overall sentiment of the meeting or of one participant, with example quotes.",
	FindPeopleMentioned:     "List people who were mentioned in the meeting but did not attend.",
	GenerateImage:           "Generate an image about the meeting from a description, in a professional, creative or abstract style.",
	ListGeneratedImages:     "List images previously generated for this meeting.",
}

// Kinds returns every tool in catalog order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// String returns the tool name used by the orchestrator.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Description returns the natural-language description offered to the model.
func (k Kind) Description() string {
	if k < 0 || k >= numKinds {
		return ""
	}
	return kindDescriptions[k]
}

// ParseKind maps a tool name to its Kind. Matching ignores case and
// surrounding whitespace.
func ParseKind(name string) (Kind, error) {
	name = strings.TrimSpace(name)
	for i, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tool %q: %w", name, mcerrors.ErrValidation)
}
