package transcript

import (
	"fmt"
	"strings"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

// Format is a transcript export format.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatSRT      Format = "srt"
)

// ParseFormat accepts the export format names and common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "txt", "text", "plain":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "srt", "subrip":
		return FormatSRT, nil
	default:
		return "", fmt.Errorf("unknown export format %q: %w", s, mcerrors.ErrValidation)
	}
}

// Export renders sentences in the given format.
func Export(sentences []Sentence, format Format) (string, error) {
	switch format {
	case FormatText:
		return ExportText(sentences), nil
	case FormatMarkdown:
		return ExportMarkdown(sentences), nil
	case FormatSRT:
		return ExportSRT(sentences), nil
	default:
		return "", fmt.Errorf("unknown export format %q: %w", format, mcerrors.ErrValidation)
	}
}

// ExportText writes one sentence per line.
func ExportText(sentences []Sentence) string {
	var b strings.Builder
	for _, s := range sentences {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// ExportMarkdown writes each sentence as "**[M:SS]** sentence", one paragraph each.
func ExportMarkdown(sentences []Sentence) string {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = fmt.Sprintf("**[%s]** %s", FormatTimestamp(s.StartTime), s.Text)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// ExportSRT writes SubRip cues: 1-based index, "start --> end", text, blank line.
func ExportSRT(sentences []Sentence) string {
	var b strings.Builder
	for i, s := range sentences {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatSRTTimestamp(s.StartTime),
			FormatSRTTimestamp(s.EndTime),
			s.Text,
		)
	}
	return b.String()
}
