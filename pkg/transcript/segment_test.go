package transcript

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_HelloWorld(t *testing.T) {
	words := []Word{
		{Text: "Hello", Start: 0, End: 500, Confidence: 0.9},
		{Text: "world.", Start: 500, End: 1000, Confidence: 0.8},
	}

	sentences := Segment(words)
	require.Len(t, sentences, 1)

	s := sentences[0]
	assert.Equal(t, "Hello world.", s.Text)
	assert.Equal(t, int64(0), s.StartTime)
	assert.Equal(t, int64(1000), s.EndTime)
	assert.InDelta(t, 0.85, s.Confidence, 1e-9)
}

func TestSegment_Empty(t *testing.T) {
	assert.Empty(t, Segment(nil))
	assert.Empty(t, Segment([]Word{}))
}

func TestSegment_NoTerminalPunctuation(t *testing.T) {
	words := []Word{
		{Text: "so", Start: 0, End: 100, Confidence: 1},
		{Text: "anyway", Start: 100, End: 300, Confidence: 1},
		{Text: "moving", Start: 300, End: 500, Confidence: 1},
		{Text: "on", Start: 500, End: 600, Confidence: 1},
	}

	sentences := Segment(words)
	require.Len(t, sentences, 1)
	assert.Equal(t, "so anyway moving on", sentences[0].Text)
	assert.Equal(t, int64(600), sentences[0].EndTime)
}

func TestSegment_TerminalPunctuationKinds(t *testing.T) {
	words := []Word{
		{Text: "Ready?", Start: 0, End: 100, Confidence: 1},
		{Text: "Yes!", Start: 100, End: 200, Confidence: 1},
		{Text: "Good.", Start: 200, End: 300, Confidence: 1},
		{Text: "Then", Start: 300, End: 400, Confidence: 1},
		{Text: "go", Start: 400, End: 500, Confidence: 1},
	}

	sentences := Segment(words)
	require.Len(t, sentences, 4)
	assert.Equal(t, "Ready?", sentences[0].Text)
	assert.Equal(t, "Yes!", sentences[1].Text)
	assert.Equal(t, "Good.", sentences[2].Text)
	assert.Equal(t, "Then go", sentences[3].Text)
}

func TestSegment_ReconstructsInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tokens := []string{"we", "should", "ship", "it.", "really?", "yes!", "okay", "fine."}

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		words := make([]Word, n)
		var at int64
		for i := range words {
			dur := int64(rng.Intn(400) + 50)
			words[i] = Word{
				Text:       tokens[rng.Intn(len(tokens))],
				Start:      at,
				End:        at + dur,
				Confidence: rng.Float64(),
			}
			at += dur
		}

		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			var rebuilt []Word
			for _, s := range Segment(words) {
				rebuilt = append(rebuilt, s.Words...)

				var sum float64
				for _, w := range s.Words {
					sum += w.Confidence
				}
				assert.InDelta(t, sum/float64(len(s.Words)), s.Confidence, 1e-9)
				assert.False(t, math.IsNaN(s.Confidence))
			}
			if n == 0 {
				assert.Empty(t, rebuilt)
				return
			}
			assert.Equal(t, words, rebuilt)
		})
	}
}

func TestTranscript_SentencesMemoized(t *testing.T) {
	tr := New("", []Word{
		{Text: "One.", Start: 0, End: 100, Confidence: 1},
		{Text: "Two.", Start: 100, End: 200, Confidence: 1},
	})

	first := tr.Sentences()
	require.Len(t, first, 2)
	assert.Equal(t, first, tr.Sentences())
	assert.Equal(t, "One. Two.", tr.Text())

	// Callers get their own copy.
	first[0].Text = "Changed."
	first[1].Words[0].Text = "Changed."
	second := tr.Sentences()
	assert.Equal(t, "One.", second[0].Text)
	assert.Equal(t, "Two.", second[1].Words[0].Text)

	matches := Search(second, "two")
	require.Len(t, matches, 1)
	matches[0].Sentence.Words[0].Speaker = "Mallory"
	assert.Empty(t, tr.Sentences()[1].Speaker())
}

func TestTranscript_TextOnlyFallback(t *testing.T) {
	tr := New("First point. Second point! Done", nil)

	sentences := tr.Sentences()
	require.Len(t, sentences, 3)
	assert.Equal(t, "First point.", sentences[0].Text)
	assert.Equal(t, "Second point!", sentences[1].Text)
	assert.Equal(t, "Done", sentences[2].Text)
	assert.Equal(t, 1.0, sentences[0].Confidence)
}

func TestTranscript_Turns(t *testing.T) {
	tr := New("", []Word{
		{Text: "Hi", Start: 0, End: 100, Speaker: "Alice"},
		{Text: "all.", Start: 100, End: 200, Speaker: "Alice"},
		{Text: "Hello.", Start: 200, End: 300, Speaker: "Bob"},
		{Text: "Right.", Start: 300, End: 400, Speaker: "Alice"},
	})

	turns := tr.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "Alice", turns[0].Speaker)
	assert.Equal(t, "Hi all.", turns[0].Text())
	assert.Equal(t, int64(200), turns[0].End)
	assert.Equal(t, "Bob", turns[1].Speaker)
	assert.Equal(t, []string{"Alice", "Bob"}, tr.Speakers())
}

func TestTranscript_NilSafe(t *testing.T) {
	var tr *Transcript
	assert.True(t, tr.Empty())
	assert.Empty(t, tr.Sentences())
	assert.Empty(t, tr.Text())
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "We agreed.", []string{"We agreed."}},
		{"trailing remainder", "Done. And then", []string{"Done.", "And then"}},
		{"stray punctuation", "Hello... ?! World", []string{"Hello...", "World"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitSentences(tc.text))
		})
	}
}
