package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/pkg/images"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/sentiment"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

const testMeetingID = "m-1"

// line is one utterance of the fixture transcript.
type line struct {
	speaker string
	text    string
}

// buildWords turns utterances into timed words, 500ms per word.
func buildWords(lines ...line) []transcript.Word {
	var words []transcript.Word
	var t int64
	for _, l := range lines {
		for _, f := range strings.Fields(l.text) {
			words = append(words, transcript.Word{Text: f, Start: t, End: t + 500, Confidence: 0.9, Speaker: l.speaker})
			t += 500
		}
	}
	return words
}

func testMeeting() meeting.Meeting {
	return meeting.Meeting{
		ID:              testMeetingID,
		Title:           "Quarterly Planning",
		Date:            "2025-03-14",
		Time:            "14:00",
		DurationSeconds: 2700,
		Provider:        "zoom",
		Status:          meeting.StatusCompleted,
		Participants:    []string{"Alice", "Bob"},
	}
}

var planningLines = []line{
	{"Alice", "I will send the budget report by Friday."},
	{"Bob", "We need to update the roadmap. The vendor contract is signed."},
	{"Alice", "We should ask Sarah Connor about the vendor timeline."},
	{"Bob", "Sarah Connor said the vendor can start next week."},
}

// fakeClassifier is a sentiment.Classifier with a swappable implementation.
type fakeClassifier struct {
	ClassifyFn func(ctx context.Context, statements []string) (*sentiment.Result, error)
	calls      [][]string
}

func (f *fakeClassifier) Classify(ctx context.Context, statements []string) (*sentiment.Result, error) {
	f.calls = append(f.calls, statements)
	return f.ClassifyFn(ctx, statements)
}

// fakeGenerator is an ImageGenerator with a swappable implementation.
type fakeGenerator struct {
	GenerateFn func(ctx context.Context, prompt string, style images.Style) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, style images.Style) (string, error) {
	return f.GenerateFn(ctx, prompt, style)
}

func staticGenerator(url string) *fakeGenerator {
	return &fakeGenerator{GenerateFn: func(context.Context, string, images.Style) (string, error) {
		return url, nil
	}}
}

// newTestToolbox builds a dispatcher over one bundle and binds it.
func newTestToolbox(t *testing.T, b *meeting.Bundle, mutate func(*Config)) *Toolbox {
	t.Helper()

	store := meeting.NewMemoryStore()
	require.NoError(t, store.Add(b))

	cfg := Config{Meetings: store}
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := NewDispatcher(cfg)
	require.NoError(t, err)
	return d.Bind(b.Meeting.ID)
}

func planningBundle(lines ...line) *meeting.Bundle {
	if len(lines) == 0 {
		lines = planningLines
	}
	return &meeting.Bundle{
		Meeting:    testMeeting(),
		Transcript: transcript.New("", buildWords(lines...)),
	}
}

func repeatLines(speaker, format string, n int) []line {
	out := make([]line, n)
	for i := range out {
		out[i] = line{speaker, fmt.Sprintf(format, i+1)}
	}
	return out
}
