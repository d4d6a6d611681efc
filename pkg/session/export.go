package session

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/meetchat/pkg/chat"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// Export renders the conversation as Markdown or plain text.
func (s *Session) Export(format transcript.Format) (string, error) {
	s.mu.Lock()
	msgs := cloneAll(s.messages)
	title, date := s.title, s.date
	now := s.now()
	s.mu.Unlock()

	if date == "" {
		date = now.Format("January 2, 2006")
	}

	switch format {
	case transcript.FormatMarkdown:
		return ExportMarkdown(title, date, msgs), nil
	case transcript.FormatText:
		return ExportText(title, date, msgs), nil
	default:
		return "", fmt.Errorf("conversations cannot be exported as %q: %w", format, mcerrors.ErrValidation)
	}
}

// ExportMarkdown renders messages under a "# Meeting Chat: <title>" header,
// each turn labeled with its role and separated by "---".
func ExportMarkdown(title, date string, msgs []*chat.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Meeting Chat: %s\n\n", title)
	fmt.Fprintf(&b, "*Date: %s*\n", date)

	for _, m := range exportable(msgs) {
		b.WriteString("\n---\n\n")
		fmt.Fprintf(&b, "**%s:**\n\n%s\n", m.Role.Label(), chat.Render(m, false))
	}
	return b.String()
}

// ExportText renders messages as plain text with "----" separators.
func ExportText(title, date string, msgs []*chat.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting Chat: %s\n", title)
	fmt.Fprintf(&b, "Date: %s\n", date)

	for _, m := range exportable(msgs) {
		b.WriteString("\n----\n\n")
		fmt.Fprintf(&b, "%s:\n%s\n", m.Role.Label(), chat.Render(m, false))
	}
	return b.String()
}

// exportable drops messages with nothing to render, such as an assistant
// message whose reply has not started.
func exportable(msgs []*chat.Message) []*chat.Message {
	var out []*chat.Message
	for _, m := range msgs {
		if chat.Render(m, false) != "" {
			out = append(out, m)
		}
	}
	return out
}
