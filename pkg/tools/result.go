package tools

import (
	"encoding/json"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/observability"
)

// Sentinel messages returned in place of data.
const (
	msgMeetingNotFound = "Meeting not found."
	msgNoTranscript    = "No transcript is available for this meeting."
	msgNoSpeakers      = "No speaker information is available for this meeting."
	msgNoActionItems   = "No action items found in this meeting."
	msgNoDecisions     = "No key decisions found in this meeting."
	msgNoTopics        = "I couldn't identify clear topics from this meeting."
	msgNoScheduling    = "No scheduling information found in this meeting."
	msgNoPeople        = "No other people were mentioned in this meeting."
	msgNoImages        = "No images have been generated for this meeting yet."
	msgSentimentFailed = "I couldn't analyze the sentiment right now because the sentiment service is unavailable. Please try again later."
	msgImageFailed     = "I couldn't generate the image because the image service is unavailable. Please try again later."
	msgImageDisabled   = "Image generation is not available for this meeting assistant."
	msgInternal        = "Something went wrong while running this tool. Please try asking in a different way."
	msgCancelled       = "The request was cancelled before the tool finished."
	msgUnavailable     = "A service this tool depends on is unavailable right now. Please try again later."
)

// Result is the outcome of one tool call. Text is conversational content for
// the model and the user; Data carries the structured form where one exists.
// Retryable marks failures that may succeed if asked again.
type Result struct {
	Tool      string               `json:"tool"`
	Text      string               `json:"text"`
	Data      any                  `json:"data,omitempty"`
	Success   bool                 `json:"success"`
	Failure   mcerrors.FailureCode `json:"failure,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
}

// Content returns the payload handed back to the model: Text, or the JSON
// form of Data when the tool produced structured output.
func (r Result) Content() string {
	if r.Data == nil {
		return r.Text
	}
	data, err := json.Marshal(map[string]any{"text": r.Text, "data": r.Data})
	if err != nil {
		return r.Text
	}
	return string(data)
}

// Outcome returns the metric label for the result.
func (r Result) Outcome() string {
	switch r.Failure {
	case "":
		return observability.OutcomeSuccess
	case mcerrors.FailureEmptyResult, mcerrors.FailureNotFound:
		return observability.OutcomeEmpty
	case mcerrors.FailureMalformedInput:
		return observability.OutcomeRejected
	default:
		return observability.OutcomeFailure
	}
}

func ok(k Kind, text string, data any) Result {
	return Result{Tool: k.String(), Text: text, Data: data, Success: true}
}

// empty is a successful call that found nothing.
func empty(k Kind, text string) Result {
	return Result{Tool: k.String(), Text: text, Success: true, Failure: mcerrors.FailureEmptyResult}
}

func notFound(msg string) error {
	return mcerrors.NewToolError(mcerrors.FailureNotFound, "", msg, nil)
}

func malformed(msg string) error {
	return mcerrors.NewToolError(mcerrors.FailureMalformedInput, "", msg, nil)
}

// ImageResult is the structured result of generateImage.
type ImageResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl"`
	Markdown string `json:"markdown"`
}
