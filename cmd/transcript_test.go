package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/config"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

func createTranscriptTestDeps(cfg *config.CLIConfig) *TranscriptCommandDeps {
	return &TranscriptCommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		OpenMeeting: openMeeting,
	}
}

// runTranscript executes the transcript command with args and returns stdout.
func runTranscript(t *testing.T, deps *TranscriptCommandDeps, args ...string) (string, error) {
	t.Helper()
	cmd := NewTranscriptCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewTranscriptCommand(t *testing.T) {
	cmd := NewTranscriptCommand(createTranscriptTestDeps(mockConfig()))

	assert.Equal(t, "transcript", cmd.Use)
	assert.Contains(t, cmd.Aliases, "tx")

	expected := []string{"segment", "search", "export", "show"}
	for _, name := range expected {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
		assert.NotNil(t, sub.Flags().Lookup("file"), "%s should accept --file", name)
		assert.NotNil(t, sub.Flags().Lookup("db"), "%s should accept --db", name)
	}
}

func TestNewTranscriptCommand_WithNilDeps(t *testing.T) {
	cmd := NewTranscriptCommand(nil)
	assert.Equal(t, "transcript", cmd.Use)
}

func TestTranscriptSegment_Text(t *testing.T) {
	out, err := runTranscript(t, createTranscriptTestDeps(mockConfig()), "segment", "--file", writeBundle(t))
	require.NoError(t, err)

	assert.Contains(t, out, "[0:00] Alice: The budget is approved. (0.95 high)")
	assert.Contains(t, out, "[1:01] Bob: Launch slips a week. (0.60 low)")
	assert.Contains(t, out, "2 sentences")
}

func TestTranscriptSegment_JSON(t *testing.T) {
	out, err := runTranscript(t, createTranscriptTestDeps(mockConfig()), "segment", "--file", writeBundle(t), "-o", "json")
	require.NoError(t, err)

	var views []sentenceView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[1].Index)
	assert.Equal(t, "Bob", views[1].Speaker)
	assert.Equal(t, int64(61000), views[1].StartMs)
	assert.Equal(t, int64(62300), views[1].EndMs)
	assert.Equal(t, string(transcript.BandLow), views[1].Band)
}

func TestTranscriptSearch(t *testing.T) {
	deps := createTranscriptTestDeps(mockConfig())

	out, err := runTranscript(t, deps, "search", "BUDGET", "--file", writeBundle(t), "-o", "json")
	require.NoError(t, err)
	var views []sentenceView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "The budget is approved.", views[0].Text)

	out, err = runTranscript(t, deps, "search", "roadmap", "--file", writeBundle(t))
	require.NoError(t, err)
	assert.Contains(t, out, `No sentences match "roadmap".`)

	out, err = runTranscript(t, deps, "search", "launch", "--file", writeBundle(t))
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 2 sentences match")
}

func TestTranscriptSearch_BlankQuery(t *testing.T) {
	_, err := runTranscript(t, createTranscriptTestDeps(mockConfig()), "search", "  ", "--file", writeBundle(t))
	assert.ErrorIs(t, err, mcerrors.ErrValidation)
}

func TestTranscriptExport(t *testing.T) {
	deps := createTranscriptTestDeps(mockConfig())
	bundle := writeBundle(t)

	out, err := runTranscript(t, deps, "export", "--file", bundle)
	require.NoError(t, err)
	assert.Equal(t, "The budget is approved.\nLaunch slips a week.\n", out)

	out, err = runTranscript(t, deps, "export", "--file", bundle, "--format", "md")
	require.NoError(t, err)
	assert.Contains(t, out, "**[0:00]** The budget is approved.")
	assert.Contains(t, out, "**[1:01]** Launch slips a week.")

	path := filepath.Join(t.TempDir(), "launch.srt")
	_, err = runTranscript(t, deps, "export", "--file", bundle, "--format", "srt", "--out", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "1\n00:00:00,000 --> 00:00:01,000\n"), string(data))

	_, err = runTranscript(t, deps, "export", "--file", bundle, "--format", "docx")
	assert.Error(t, err)
}

func TestTranscriptShow(t *testing.T) {
	out, err := runTranscript(t, createTranscriptTestDeps(mockConfig()), "show", "--file", writeBundle(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "The budget is approved.")
	assert.Less(t, strings.Index(out, "Alice"), strings.Index(out, "Bob"))
}

func TestTranscript_EmptyTranscript(t *testing.T) {
	deps := createTranscriptTestDeps(mockConfig())
	deps.OpenMeeting = func(ctx context.Context, cfg *config.CLIConfig, src MeetingSource, logger logging.Logger) (*OpenedMeeting, error) {
		store := meeting.NewMemoryStore()
		b := &meeting.Bundle{Meeting: meeting.Meeting{ID: "m-empty"}}
		if err := store.Add(b); err != nil {
			return nil, err
		}
		return &OpenedMeeting{Store: store, Meeting: &b.Meeting}, nil
	}

	_, err := runTranscript(t, deps, "segment")
	assert.Error(t, err)
}

func TestRenderTranscript_UnknownSpeaker(t *testing.T) {
	var buf bytes.Buffer
	renderTranscript(&buf, []transcript.Sentence{{Text: "Hello.", Confidence: 1}})
	assert.Contains(t, buf.String(), "Unknown speaker")
	assert.Contains(t, buf.String(), "Hello.")
}

func TestHighlightMatch(t *testing.T) {
	assert.Equal(t, matchStyle.Render("Launch"), highlightMatch("Launch"))

	out := transcript.HighlightWith("Launch slips a week.", "launch", highlightMatch)
	assert.Contains(t, out, "Launch")
	assert.True(t, strings.HasSuffix(out, " slips a week."), out)
}
