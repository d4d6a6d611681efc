package transcript

import (
	"regexp"
	"strings"
)

// Segment groups words into sentences. A sentence is flushed when a word ends
// in '.', '!' or '?', or when the word is the last one in the transcript.
// Concatenating the returned sentences' word lists yields the input exactly.
func Segment(words []Word) []Sentence {
	sentences := make([]Sentence, 0)
	var buf []Word

	for i, w := range words {
		buf = append(buf, w)
		if endsSentence(w.Text) || i == len(words)-1 {
			sentences = append(sentences, newSentence(buf))
			buf = nil
		}
	}

	return sentences
}

func endsSentence(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?")
}

func newSentence(words []Word) Sentence {
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return Sentence{
		Text:       joinWords(words),
		StartTime:  words[0].Start,
		EndTime:    words[len(words)-1].End,
		Confidence: sum / float64(len(words)),
		Words:      words,
	}
}

// sentenceSplitRegex matches a run of non-terminal characters followed by
// terminal punctuation, or the trailing remainder of the text.
var sentenceSplitRegex = regexp.MustCompile(`[^.!?]+[.!?]*`)

// SplitSentences splits free text (summaries, transcripts without word timing)
// into trimmed sentences on terminal punctuation. Empty fragments are dropped.
func SplitSentences(text string) []string {
	var out []string
	for _, m := range sentenceSplitRegex.FindAllString(text, -1) {
		if s := strings.TrimSpace(m); s != "" && strings.Trim(s, ".!?") != "" {
			out = append(out, s)
		}
	}
	return out
}
