package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

func formatActionItem(item meeting.ActionItem) string {
	if item.Assignee == "" {
		return "- " + item.Text
	}
	return fmt.Sprintf("- %s (%s)", item.Text, item.Assignee)
}

// transcriptActionItems returns sentences containing action phrases,
// attributed to their speaker.
func transcriptActionItems(t *transcript.Transcript) []meeting.ActionItem {
	var items []meeting.ActionItem
	seen := make(map[string]bool)
	for _, s := range t.Sentences() {
		text := strings.TrimSpace(s.Text)
		if text == "" || seen[text] || !actionPhraseRegex.MatchString(text) {
			continue
		}
		seen[text] = true
		items = append(items, meeting.ActionItem{Text: text, Assignee: s.Speaker()})
	}
	return items
}

// assignedTo matches on the assignee when one is recorded; only unassigned
// items fall back to their text.
func assignedTo(item meeting.ActionItem, assignee string) bool {
	if strings.TrimSpace(item.Assignee) != "" {
		return matchesName(item.Assignee, assignee)
	}
	return containsFold(item.Text, assignee)
}

func (tb *Toolbox) actionItems(ctx context.Context, args *ActionItemsArgs) (Result, error) {
	if _, err := tb.loadMeeting(ctx); err != nil {
		return Result{}, err
	}

	sum, err := tb.loadSummary(ctx)
	if err != nil {
		return Result{}, err
	}

	var items []meeting.ActionItem
	if sum != nil && len(sum.ActionItems) > 0 {
		items = sum.ActionItems
	} else {
		t, err := tb.loadOptionalTranscript(ctx)
		if err != nil {
			return Result{}, err
		}
		if t == nil && sum == nil {
			return Result{}, notFound(msgNoTranscript)
		}
		items = transcriptActionItems(t)
	}

	assignee := strings.TrimSpace(args.Assignee)
	if assignee != "" {
		var filtered []meeting.ActionItem
		for _, item := range items {
			if assignedTo(item, assignee) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if len(items) == 0 {
		if assignee != "" {
			return empty(ExtractActionItems, fmt.Sprintf("No action items found for %s.", assignee)), nil
		}
		return empty(ExtractActionItems, msgNoActionItems), nil
	}

	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = formatActionItem(item)
	}
	return ok(ExtractActionItems, strings.Join(lines, "\n"), items), nil
}

func (tb *Toolbox) meetingSummary(ctx context.Context) (Result, error) {
	m, err := tb.loadMeeting(ctx)
	if err != nil {
		return Result{}, err
	}

	sum, err := tb.loadSummary(ctx)
	if err != nil {
		return Result{}, err
	}
	if sum != nil && strings.TrimSpace(sum.Text) != "" {
		return ok(GetMeetingSummary, sum.Text, nil), nil
	}

	participants := "none listed"
	if len(m.Participants) > 0 {
		participants = strings.Join(m.Participants, ", ")
	}
	return empty(GetMeetingSummary, fmt.Sprintf("No summary has been generated yet for %q (%s). Participants: %s.",
		m.Title, m.Date, participants)), nil
}

func (tb *Toolbox) keyDecisions(ctx context.Context, args *DecisionsArgs) (Result, error) {
	if _, err := tb.loadMeeting(ctx); err != nil {
		return Result{}, err
	}

	source := ""
	sum, err := tb.loadSummary(ctx)
	if err != nil {
		return Result{}, err
	}
	if sum != nil {
		source = sum.Text
	}
	if strings.TrimSpace(source) == "" {
		t, err := tb.loadOptionalTranscript(ctx)
		if err != nil {
			return Result{}, err
		}
		if t == nil {
			return Result{}, notFound(msgNoTranscript)
		}
		source = t.Text()
	}

	topic := strings.TrimSpace(args.Topic)
	var decisions []string
	seen := make(map[string]bool)
	for _, s := range transcript.SplitSentences(source) {
		if !decisionRegex.MatchString(s) || seen[s] {
			continue
		}
		if topic != "" && !containsFold(s, topic) {
			continue
		}
		seen[s] = true
		decisions = append(decisions, s)
	}

	if len(decisions) == 0 {
		if topic != "" {
			return empty(ExtractKeyDecisions, fmt.Sprintf("No key decisions found related to %q.", topic)), nil
		}
		return empty(ExtractKeyDecisions, msgNoDecisions), nil
	}

	lines := make([]string, len(decisions))
	for i, d := range decisions {
		lines[i] = "- " + d
	}
	return ok(ExtractKeyDecisions, strings.Join(lines, "\n"), decisions), nil
}

// Metadata is the structured form of getMeetingMetadata.
type Metadata struct {
	Title            string `json:"title"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Duration         string `json:"duration"`
	Provider         string `json:"provider"`
	Status           string `json:"status"`
	ParticipantCount int    `json:"participantCount"`
}

// formatDuration renders a duration as "1h 5m", "45m" or "30s".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func (tb *Toolbox) meetingMetadata(ctx context.Context) (Result, error) {
	m, err := tb.loadMeeting(ctx)
	if err != nil {
		return Result{}, err
	}

	status := m.Status
	if status == "" {
		status = meeting.StatusUnknown
	}
	md := Metadata{
		Title:            m.Title,
		Date:             m.Date,
		Time:             m.Time,
		Duration:         formatDuration(m.Duration()),
		Provider:         m.Provider,
		Status:           string(status),
		ParticipantCount: len(m.Participants),
	}

	lines := []string{
		"Title: " + orUnknown(md.Title),
		"Date: " + orUnknown(md.Date),
		"Time: " + orUnknown(md.Time),
		"Duration: " + md.Duration,
		"Provider: " + orUnknown(md.Provider),
		"Status: " + status.Label(),
		fmt.Sprintf("Participants: %d", md.ParticipantCount),
	}
	return ok(GetMeetingMetadata, strings.Join(lines, "\n"), md), nil
}
