package transcript

import (
	"regexp"
	"strings"
)

// Match is a sentence that contains a search query.
type Match struct {
	Index    int
	Sentence Sentence
}

// Search returns the sentences whose text contains query, ignoring case.
// An empty query matches nothing.
func Search(sentences []Sentence, query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []Match
	for i, s := range sentences {
		if strings.Contains(strings.ToLower(s.Text), q) {
			matches = append(matches, Match{Index: i, Sentence: s})
		}
	}
	return matches
}

// Fragment is one piece of highlighted text.
type Fragment struct {
	Text  string
	Match bool
}

// Highlight splits text on case-insensitive occurrences of query. Matched
// fragments keep the casing of the original text.
func Highlight(text, query string) []Fragment {
	if query == "" || text == "" {
		return []Fragment{{Text: text}}
	}

	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(query))
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []Fragment{{Text: text}}
	}

	var out []Fragment
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			out = append(out, Fragment{Text: text[last:loc[0]]})
		}
		out = append(out, Fragment{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Fragment{Text: text[last:]})
	}
	return out
}

// HighlightWith renders the fragments, wrapping matches with mark.
func HighlightWith(text, query string, mark func(string) string) string {
	var b strings.Builder
	for _, f := range Highlight(text, query) {
		if f.Match {
			b.WriteString(mark(f.Text))
		} else {
			b.WriteString(f.Text)
		}
	}
	return b.String()
}
