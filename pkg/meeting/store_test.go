package meeting

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

const bundleJSON = `{
  "meeting": {
    "id": "m-1",
    "title": "Quarterly Planning",
    "date": "2025-03-14",
    "time": "14:00",
    "duration": 2700,
    "provider": "zoom",
    "status": 3,
    "participants": ["Alice", "Bob"]
  },
  "transcript": {
    "text": "",
    "words": [
      {"text": "Hello", "start": 0, "end": 500, "confidence": 0.9, "speaker": "Alice"},
      {"text": "world.", "start": 500, "end": 1000, "confidence": 0.8, "speaker": "Alice"}
    ]
  },
  "summary": {
    "text": "The team agreed on the roadmap.",
    "action_items": [{"text": "Draft the plan", "assignee": "Alice"}]
  }
}`

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"0", StatusScheduled},
		{"1", StatusInProgress},
		{"3", StatusCompleted},
		{"4", StatusFailed},
		{"9", StatusUnknown},
		{"-1", StatusUnknown},
		{"Completed", StatusCompleted},
		{"in progress", StatusInProgress},
		{"done", StatusCompleted},
		{"whatever", StatusUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveStatus(tc.raw))
		})
	}
}

func TestStatus_UnmarshalJSON(t *testing.T) {
	var m Meeting
	require.NoError(t, json.Unmarshal([]byte(`{"status": 2}`), &m))
	assert.Equal(t, StatusProcessing, m.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"status": "failed"}`), &m))
	assert.Equal(t, StatusFailed, m.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status": {}}`), &m))
}

func TestDecodeBundle(t *testing.T) {
	b, err := DecodeBundle(strings.NewReader(bundleJSON))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Planning", b.Meeting.Title)
	assert.Equal(t, StatusCompleted, b.Meeting.Status)
	require.NotNil(t, b.Transcript)
	assert.Equal(t, "Hello world.", b.Transcript.Text())
	require.NotNil(t, b.Summary)
	assert.Equal(t, "Alice", b.Summary.ActionItems[0].Assignee)
}

func TestDecodeBundle_RequiresID(t *testing.T) {
	_, err := DecodeBundle(strings.NewReader(`{"meeting": {"title": "x"}}`))
	require.Error(t, err)
	assert.True(t, mcerrors.IsValidation(err))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	b, err := DecodeBundle(strings.NewReader(bundleJSON))
	require.NoError(t, err)

	store := NewMemoryStore()
	require.NoError(t, store.Add(b))

	m, err := store.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, m.Participants)

	tr, err := store.GetTranscript(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, tr.Sentences(), 1)

	sum, err := store.GetSummary(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", sum.MeetingID)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Add(&Bundle{Meeting: Meeting{ID: "bare"}}))

	_, err := store.GetMeeting(ctx, "missing")
	assert.True(t, mcerrors.IsNotFound(err))

	_, err = store.GetTranscript(ctx, "bare")
	assert.True(t, mcerrors.IsNotFound(err))

	_, err = store.GetSummary(ctx, "bare")
	assert.True(t, mcerrors.IsNotFound(err))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Add(&Bundle{Meeting: Meeting{ID: "m", Title: "Original"}}))

	m, err := store.GetMeeting(ctx, "m")
	require.NoError(t, err)
	m.Title = "Changed"

	again, err := store.GetMeeting(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Title)
}

func TestLoadBundleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeting.json")
	require.NoError(t, os.WriteFile(path, []byte(bundleJSON), 0o644))

	store, b, err := LoadBundleFile(path)
	require.NoError(t, err)
	assert.Equal(t, "m-1", b.Meeting.ID)

	_, err = store.GetMeeting(context.Background(), "m-1")
	assert.NoError(t, err)

	_, _, err = LoadBundleFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
