// Package meeting provides meeting records, transcripts and summaries, and the
// stores that serve them to the assistant's tools.
package meeting

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// Status represents the processing state of a meeting recording.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// statusCodes maps the numeric status enum used by recording providers.
var statusCodes = []Status{
	StatusScheduled,
	StatusInProgress,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// ResolveStatus maps a numeric enum code or a status name to a Status.
func ResolveStatus(raw string) Status {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 0 && n < len(statusCodes) {
			return statusCodes[n]
		}
		return StatusUnknown
	}

	normalized := Status(strings.ReplaceAll(strings.ToLower(raw), " ", "_"))
	switch normalized {
	case StatusScheduled, StatusInProgress, StatusProcessing, StatusCompleted, StatusFailed:
		return normalized
	case "inprogress", "recording", "live":
		return StatusInProgress
	case "complete", "done", "processed":
		return StatusCompleted
	case "error":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (s *Status) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*s = ResolveStatus(n.String())
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = ResolveStatus(str)
		return nil
	}
	return fmt.Errorf("meeting status: cannot unmarshal %s", string(data))
}

// Label returns a human readable form of the status.
func (s Status) Label() string {
	if s == "" {
		return string(StatusUnknown)
	}
	return strings.ReplaceAll(string(s), "_", " ")
}

// Meeting is a recorded meeting.
type Meeting struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Date            string   `json:"date"`
	Time            string   `json:"time,omitempty"`
	DurationSeconds int      `json:"duration"`
	Provider        string   `json:"provider,omitempty"`
	Status          Status   `json:"status"`
	Participants    []string `json:"participants"`
}

// Duration returns the meeting length.
func (m *Meeting) Duration() time.Duration {
	return time.Duration(m.DurationSeconds) * time.Second
}

// ActionItem is a follow-up task recorded in a summary.
type ActionItem struct {
	Text     string `json:"text"`
	Assignee string `json:"assignee,omitempty"`
}

// Summary is a persisted meeting summary.
type Summary struct {
	MeetingID   string       `json:"meeting_id"`
	Text        string       `json:"text"`
	ActionItems []ActionItem `json:"action_items,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Bundle is the file form of one meeting with its data.
type Bundle struct {
	Meeting    Meeting                `json:"meeting"`
	Transcript *transcript.Transcript `json:"transcript,omitempty"`
	Summary    *Summary               `json:"summary,omitempty"`
}
