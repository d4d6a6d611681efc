package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

// Document is the wire form of a word-level transcript.
type Document struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// MarshalJSON encodes the transcript as a Document.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(Document{Text: t.Text(), Words: t.Words()})
}

// UnmarshalJSON decodes a Document into an unused Transcript.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := ValidateWords(doc.Words); err != nil {
		return err
	}
	built := New(doc.Text, doc.Words)
	t.text, t.words = built.text, built.words
	return nil
}

// Load decodes a transcript document. UTF-8 and UTF-16 input with a byte
// order mark are both accepted.
func Load(r io.Reader) (*Transcript, error) {
	dec := json.NewDecoder(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument validates a decoded document and builds a Transcript.
func FromDocument(doc Document) (*Transcript, error) {
	if err := ValidateWords(doc.Words); err != nil {
		return nil, err
	}
	return New(doc.Text, doc.Words), nil
}

// ValidateWords checks word timing and confidence ranges.
func ValidateWords(words []Word) error {
	for i, w := range words {
		if math.IsNaN(w.Confidence) || w.Confidence < 0 || w.Confidence > 1 {
			return fmt.Errorf("word %d (%q): confidence %v outside [0,1]: %w", i, w.Text, w.Confidence, mcerrors.ErrValidation)
		}
		if w.End < w.Start {
			return fmt.Errorf("word %d (%q): end %d before start %d: %w", i, w.Text, w.End, w.Start, mcerrors.ErrValidation)
		}
	}
	return nil
}
