package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetchat/config"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// TranscriptCommandDeps holds the dependencies for transcript commands.
type TranscriptCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	OpenMeeting func(context.Context, *config.CLIConfig, MeetingSource, logging.Logger) (*OpenedMeeting, error)
}

// DefaultTranscriptDeps returns the default dependencies for production use.
func DefaultTranscriptDeps() *TranscriptCommandDeps {
	return &TranscriptCommandDeps{
		LoadConfig:  config.LoadConfig,
		OpenMeeting: openMeeting,
	}
}

// Confidence band styles for transcript show.
var (
	bandStyles = map[transcript.Band]lipgloss.Style{
		transcript.BandHigh:   lipgloss.NewStyle(),
		transcript.BandMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		transcript.BandLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Underline(true),
	}
	speakerStyle   = lipgloss.NewStyle().Bold(true)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	matchStyle     = lipgloss.NewStyle().Reverse(true)
)

func highlightMatch(s string) string {
	return matchStyle.Render(s)
}

// sentenceView is the structured output form of a sentence.
type sentenceView struct {
	Index      int     `json:"index" yaml:"index"`
	Speaker    string  `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Start      string  `json:"start" yaml:"start"`
	StartMs    int64   `json:"start_ms" yaml:"start_ms"`
	EndMs      int64   `json:"end_ms" yaml:"end_ms"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Band       string  `json:"band" yaml:"band"`
	Text       string  `json:"text" yaml:"text"`
}

func toSentenceView(i int, s transcript.Sentence) sentenceView {
	return sentenceView{
		Index:      i,
		Speaker:    s.Speaker(),
		Start:      transcript.FormatTimestamp(s.StartTime),
		StartMs:    s.StartTime,
		EndMs:      s.EndTime,
		Confidence: s.Confidence,
		Band:       string(transcript.BandFor(s.Confidence)),
		Text:       s.Text,
	}
}

// NewTranscriptCommand creates the transcript command with all subcommands.
func NewTranscriptCommand(deps *TranscriptCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultTranscriptDeps()
	}

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Segment, search and export meeting transcripts",
		Long: `Work with a meeting transcript without starting a conversation.

Transcripts are read from a meeting bundle (--file bundle.json), a WebVTT file
(--file call.vtt) or PostgreSQL (--db --meeting <id>). Words are grouped into
sentences at terminal punctuation (. ! ?); each sentence carries its start and
end time and the mean confidence of its words.

Examples:
  meetchat transcript segment --file standup.json
  meetchat transcript search "budget" --file standup.json
  meetchat transcript export --file standup.json --format srt > standup.srt
  meetchat transcript show --db --meeting m-42`,
		Aliases: []string{"tx"},
	}

	cmd.AddCommand(newTranscriptSegmentCommand(deps))
	cmd.AddCommand(newTranscriptSearchCommand(deps))
	cmd.AddCommand(newTranscriptExportCommand(deps))
	cmd.AddCommand(newTranscriptShowCommand(deps))

	return cmd
}

// loadSentences resolves the meeting and returns its segmented transcript.
func loadSentences(ctx context.Context, deps *TranscriptCommandDeps, src MeetingSource) (*config.CLIConfig, []transcript.Sentence, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	m, err := deps.OpenMeeting(ctx, cfg, src, logger)
	if err != nil {
		return nil, nil, err
	}
	defer m.Close()

	t, err := m.Transcript(ctx)
	if err != nil {
		return nil, nil, err
	}
	if t.Empty() {
		return nil, nil, fmt.Errorf("meeting %s has an empty transcript: %w", m.Meeting.ID, mcerrors.ErrNotFound)
	}
	return cfg, t.Sentences(), nil
}

func newTranscriptSegmentCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var (
		src    MeetingSource
		output string
	)

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Group transcript words into timed sentences",
		Long: `Print the transcript as sentences with start time, speaker and confidence.

Examples:
  meetchat transcript segment --file standup.json
  meetchat transcript segment --file standup.json -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sentences, err := loadSentences(cmd.Context(), deps, src)
			if err != nil {
				return err
			}
			format, err := resolveOutputFormat(output, cfg)
			if err != nil {
				return err
			}

			views := make([]sentenceView, len(sentences))
			for i, s := range sentences {
				views[i] = toSentenceView(i, s)
			}
			return writeOutput(cmd.OutOrStdout(), format, views, func(w io.Writer) error {
				for _, v := range views {
					speaker := ""
					if v.Speaker != "" {
						speaker = v.Speaker + ": "
					}
					fmt.Fprintf(w, "[%s] %s%s (%.2f %s)\n", v.Start, speaker, v.Text, v.Confidence, v.Band)
				}
				fmt.Fprintf(w, "\n%d sentences\n", len(views))
				return nil
			})
		},
	}

	src.bindFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func newTranscriptSearchCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var (
		src    MeetingSource
		output string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find sentences containing a word or phrase",
		Long: `Find the sentences whose text contains the query, ignoring case. Matches are
highlighted when writing to a terminal.

Examples:
  meetchat transcript search "launch date" --file standup.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("search query is empty: %w", mcerrors.ErrValidation)
			}

			cfg, sentences, err := loadSentences(cmd.Context(), deps, src)
			if err != nil {
				return err
			}
			format, err := resolveOutputFormat(output, cfg)
			if err != nil {
				return err
			}

			matches := transcript.Search(sentences, query)
			views := make([]sentenceView, len(matches))
			for i, m := range matches {
				views[i] = toSentenceView(m.Index, m.Sentence)
			}
			return writeOutput(cmd.OutOrStdout(), format, views, func(w io.Writer) error {
				if len(views) == 0 {
					fmt.Fprintf(w, "No sentences match %q.\n", query)
					return nil
				}
				for _, v := range views {
					fmt.Fprintf(w, "[%s] %s\n", v.Start,
						transcript.HighlightWith(v.Text, query, highlightMatch))
				}
				fmt.Fprintf(w, "\n%d of %d sentences match\n", len(views), len(sentences))
				return nil
			})
		},
	}

	src.bindFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func newTranscriptExportCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var (
		src     MeetingSource
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the transcript as text, markdown or SubRip",
		Long: `Export the segmented transcript.

Formats:
  txt   one sentence per line
  md    "**[M:SS]** sentence" paragraphs
  srt   SubRip cues with HH:MM:SS,mmm timings

Examples:
  meetchat transcript export --file standup.json --format md
  meetchat transcript export --file standup.json --format srt --out standup.srt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := transcript.ParseFormat(format)
			if err != nil {
				return err
			}
			_, sentences, err := loadSentences(cmd.Context(), deps, src)
			if err != nil {
				return err
			}
			body, err := transcript.Export(sentences, f)
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.WriteFile(outPath, []byte(body), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d sentences to %s\n", len(sentences), outPath)
			return nil
		},
	}

	src.bindFlags(cmd)
	cmd.Flags().StringVar(&format, "format", string(transcript.FormatText), "Export format: txt, md, srt")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to this file instead of stdout")
	return cmd
}

func newTranscriptShowCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var src MeetingSource

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the transcript with confidence highlighting",
		Long: `Show the transcript sentence by sentence, grouped by speaker. On a color
terminal, medium-confidence sentences (0.7 to 0.9) are amber and low-confidence
sentences (below 0.7) are red and underlined.

Examples:
  meetchat transcript show --file standup.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sentences, err := loadSentences(cmd.Context(), deps, src)
			if err != nil {
				return err
			}
			renderTranscript(cmd.OutOrStdout(), sentences)
			return nil
		},
	}

	src.bindFlags(cmd)
	return cmd
}

// renderTranscript writes sentences grouped into speaker paragraphs.
func renderTranscript(w io.Writer, sentences []transcript.Sentence) {
	lastSpeaker := "\x00"
	for _, s := range sentences {
		if sp := s.Speaker(); sp != lastSpeaker {
			if lastSpeaker != "\x00" {
				fmt.Fprintln(w)
			}
			lastSpeaker = sp
			if sp == "" {
				sp = "Unknown speaker"
			}
			fmt.Fprintf(w, "%s %s\n",
				speakerStyle.Render(sp),
				timestampStyle.Render(transcript.FormatTimestamp(s.StartTime)))
		}
		fmt.Fprintf(w, "  %s\n", bandStyles[transcript.BandFor(s.Confidence)].Render(s.Text))
	}
}
