// Package transcript groups ASR word output into sentences and derives the
// search, highlighting, timestamp and export views built on top of them.
package transcript

import (
	"strings"
	"sync"
)

// Word is a single recognised word. Times are milliseconds from the start of the recording.
type Word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Sentence is a contiguous run of words bounded by terminal punctuation or the
// end of the transcript.
type Sentence struct {
	Text       string  `json:"text"`
	StartTime  int64   `json:"startTime"`
	EndTime    int64   `json:"endTime"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Speaker returns the speaker of the first word, or "" when unknown.
func (s Sentence) Speaker() string {
	if len(s.Words) == 0 {
		return ""
	}
	return s.Words[0].Speaker
}

// Turn is a contiguous run of words spoken by the same speaker.
type Turn struct {
	Speaker string
	Start   int64
	End     int64
	Words   []Word
}

// Text joins the turn's words with single spaces.
func (t Turn) Text() string {
	return joinWords(t.Words)
}

// Transcript is an immutable word-level transcript. Sentences are derived on
// first use and memoized; a Transcript must not be copied after creation.
type Transcript struct {
	text  string
	words []Word

	once      sync.Once
	sentences []Sentence
}

// New creates a Transcript. When text is empty it is rebuilt from the words.
func New(text string, words []Word) *Transcript {
	w := make([]Word, len(words))
	copy(w, words)
	if strings.TrimSpace(text) == "" {
		text = joinWords(w)
	}
	return &Transcript{text: text, words: w}
}

// Text returns the full transcript text.
func (t *Transcript) Text() string {
	if t == nil {
		return ""
	}
	return t.text
}

// Words returns a copy of the transcript words.
func (t *Transcript) Words() []Word {
	if t == nil {
		return nil
	}
	out := make([]Word, len(t.words))
	copy(out, t.words)
	return out
}

// Empty reports whether the transcript carries no text at all.
func (t *Transcript) Empty() bool {
	return t == nil || (len(t.words) == 0 && strings.TrimSpace(t.text) == "")
}

// Sentences returns a copy of the memoized segmentation of the transcript's
// words. Transcripts without word timing fall back to splitting the text on terminal
// punctuation, with zero times and full confidence.
func (t *Transcript) Sentences() []Sentence {
	if t == nil {
		return nil
	}
	t.once.Do(func() {
		if len(t.words) > 0 {
			t.sentences = Segment(t.words)
			return
		}
		for _, s := range SplitSentences(t.text) {
			t.sentences = append(t.sentences, Sentence{Text: s, Confidence: 1})
		}
	})
	return cloneSentences(t.sentences)
}

func cloneSentences(in []Sentence) []Sentence {
	if in == nil {
		return nil
	}
	out := make([]Sentence, len(in))
	for i, s := range in {
		out[i] = s
		if s.Words != nil {
			out[i].Words = append([]Word(nil), s.Words...)
		}
	}
	return out
}

// Turns groups the words into same-speaker runs.
func (t *Transcript) Turns() []Turn {
	if t == nil {
		return nil
	}
	var turns []Turn
	for _, w := range t.words {
		if n := len(turns); n > 0 && turns[n-1].Speaker == w.Speaker {
			turns[n-1].Words = append(turns[n-1].Words, w)
			turns[n-1].End = w.End
			continue
		}
		turns = append(turns, Turn{Speaker: w.Speaker, Start: w.Start, End: w.End, Words: []Word{w}})
	}
	return turns
}

// Speakers returns the distinct non-empty speakers in order of first appearance.
func (t *Transcript) Speakers() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, w := range t.words {
		if w.Speaker == "" || seen[w.Speaker] {
			continue
		}
		seen[w.Speaker] = true
		out = append(out, w.Speaker)
	}
	return out
}

func joinWords(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
