package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/config"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
)

const testBundleJSON = `{
  "meeting": {
    "id": "m-42",
    "title": "Launch Review",
    "date": "2025-03-14",
    "duration": 1800,
    "status": "completed",
    "participants": ["Alice", "Bob"]
  },
  "transcript": {
    "text": "",
    "words": [
      {"text": "The", "start": 0, "end": 200, "confidence": 0.95, "speaker": "Alice"},
      {"text": "budget", "start": 200, "end": 500, "confidence": 0.95, "speaker": "Alice"},
      {"text": "is", "start": 500, "end": 600, "confidence": 0.95, "speaker": "Alice"},
      {"text": "approved.", "start": 600, "end": 1000, "confidence": 0.95, "speaker": "Alice"},
      {"text": "Launch", "start": 61000, "end": 61400, "confidence": 0.6, "speaker": "Bob"},
      {"text": "slips", "start": 61400, "end": 61800, "confidence": 0.6, "speaker": "Bob"},
      {"text": "a", "start": 61800, "end": 61900, "confidence": 0.6, "speaker": "Bob"},
      {"text": "week.", "start": 61900, "end": 62300, "confidence": 0.6, "speaker": "Bob"}
    ]
  },
  "summary": {
    "text": "Budget approved; launch moves by a week.",
    "action_items": [{"text": "Update the launch plan", "assignee": "Bob"}]
  }
}`

const testVTT = `WEBVTT

1 "Alice" (1)
00:00:01.000 --> 00:00:03.000
Welcome to the retro.

2 "Bob" (2)
00:00:03.000 --> 00:00:05.000
Thanks for having me.
`

// mockConfig creates a configuration for command tests.
func mockConfig() *config.CLIConfig {
	cfg := config.DefaultConfig()
	cfg.Timeout = 10 * time.Second
	return cfg
}

// writeBundle writes the test bundle to a temp file and returns its path.
func writeBundle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launch.json")
	require.NoError(t, os.WriteFile(path, []byte(testBundleJSON), 0o644))
	return path
}

func testLogger() logging.Logger {
	return logging.NewLogger(&logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func TestLoadBundle_JSON(t *testing.T) {
	b, err := loadBundle(writeBundle(t))
	require.NoError(t, err)

	assert.Equal(t, "m-42", b.Meeting.ID)
	assert.Equal(t, "Launch Review", b.Meeting.Title)
	require.NotNil(t, b.Transcript)
	assert.Len(t, b.Transcript.Sentences(), 2)
	require.NotNil(t, b.Summary)
	assert.Len(t, b.Summary.ActionItems, 1)
}

func TestLoadBundle_VTT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retro-2025.vtt")
	require.NoError(t, os.WriteFile(path, []byte(testVTT), 0o644))

	b, err := loadBundle(path)
	require.NoError(t, err)

	assert.Equal(t, "retro-2025", b.Meeting.ID)
	assert.Equal(t, "retro-2025", b.Meeting.Title)
	assert.Equal(t, meeting.StatusCompleted, b.Meeting.Status)
	assert.Equal(t, []string{"Alice", "Bob"}, b.Meeting.Participants)
	assert.Nil(t, b.Summary)
}

func TestLoadBundle_Missing(t *testing.T) {
	_, err := loadBundle(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestOpenMeeting_File(t *testing.T) {
	m, err := openMeeting(context.Background(), mockConfig(), MeetingSource{File: writeBundle(t)}, testLogger())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "m-42", m.Meeting.ID)
	assert.Nil(t, m.Pool)

	tr, err := m.Transcript(context.Background())
	require.NoError(t, err)
	assert.False(t, tr.Empty())
}

func TestOpenMeeting_Validation(t *testing.T) {
	tests := []struct {
		name string
		src  MeetingSource
	}{
		{"no source", MeetingSource{}},
		{"db without meeting", MeetingSource{UseDB: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openMeeting(context.Background(), mockConfig(), tt.src, testLogger())
			assert.ErrorIs(t, err, mcerrors.ErrValidation)
		})
	}
}

func TestResolveOutputFormat(t *testing.T) {
	cfg := mockConfig()

	f, err := resolveOutputFormat("", cfg)
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatText, f)

	f, err = resolveOutputFormat("JSON", cfg)
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatJSON, f)

	cfg.OutputFormat = config.OutputFormatYAML
	f, err = resolveOutputFormat("", cfg)
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatYAML, f)

	_, err = resolveOutputFormat("xml", cfg)
	assert.ErrorIs(t, err, mcerrors.ErrValidation)
}

func TestWriteOutput(t *testing.T) {
	v := map[string]int{"turns": 3}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "three turns\n")
		return err
	}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, config.OutputFormatJSON, v, text))
	assert.Equal(t, "{\n  \"turns\": 3\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, writeOutput(&buf, config.OutputFormatYAML, v, text))
	assert.Equal(t, "turns: 3\n", buf.String())

	buf.Reset()
	require.NoError(t, writeOutput(&buf, config.OutputFormatText, v, text))
	assert.Equal(t, "three turns\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Quarterl...", truncate("Quarterly planning review", 11))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}

func TestDatabaseConfig(t *testing.T) {
	cfg := mockConfig()
	t.Setenv("MEETCHAT_DB_HOST", "db.internal")

	dbCfg := databaseConfig(cfg)
	assert.Equal(t, "db.internal", dbCfg.Host)

	cfg.Database = dbCfg
	assert.Same(t, dbCfg, databaseConfig(cfg))
}
