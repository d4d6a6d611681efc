package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

// ParseError describes a malformed list query.
type ParseError struct {
	Message  string
	Position int
	// Context is the text near the error.
	Context string
}

func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("parse error at position %d: %s (near '%s')", e.Position, e.Message, e.Context)
	}
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// Unwrap lets callers treat parse failures as validation errors.
func (e *ParseError) Unwrap() error { return mcerrors.ErrValidation }

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"Jan 2 2006",
	"2 Jan 2006",
}

type queryToken struct {
	value    string
	key      string
	position int
	isFilter bool
}

// ParseQuery turns a query such as `meeting:m-42 label:budget after:2025-03-01 "launch date"`
// into list options. Words that are not filters become the free-text match.
func ParseQuery(input string) (ListOptions, error) {
	return parseQueryAt(input, time.Now())
}

func parseQueryAt(input string, now time.Time) (ListOptions, error) {
	var opts ListOptions

	tokens, err := tokenizeQuery(input)
	if err != nil {
		return opts, err
	}

	var text []string
	for _, tok := range tokens {
		if !tok.isFilter {
			text = append(text, tok.value)
			continue
		}
		if err := applyFilter(&opts, tok, now); err != nil {
			return opts, err
		}
	}
	opts.Query = strings.Join(text, " ")
	return opts, nil
}

func applyFilter(opts *ListOptions, tok queryToken, now time.Time) error {
	if strings.TrimSpace(tok.value) == "" {
		return &ParseError{Message: "empty filter value", Position: tok.position, Context: tok.key + ":"}
	}

	switch tok.key {
	case "meeting":
		opts.MeetingID = tok.value
	case "label", "labels":
		for _, l := range strings.Split(tok.value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				opts.Labels = append(opts.Labels, l)
			}
		}
	case "after", "since":
		t, err := parseQueryDate(tok.value, now)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: tok.position, Context: tok.key + ":" + tok.value}
		}
		opts.Since = t
	case "before", "until":
		t, err := parseQueryDate(tok.value, now)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: tok.position, Context: tok.key + ":" + tok.value}
		}
		opts.Until = t
	case "limit":
		n, err := strconv.Atoi(tok.value)
		if err != nil || n <= 0 {
			return &ParseError{Message: "limit must be a positive number", Position: tok.position, Context: tok.key + ":" + tok.value}
		}
		opts.Limit = n
	default:
		return &ParseError{Message: fmt.Sprintf("unknown filter %q", tok.key), Position: tok.position, Context: tok.key + ":"}
	}
	return nil
}

func tokenizeQuery(input string) ([]queryToken, error) {
	var tokens []queryToken
	runes := []rune(input)
	n := len(runes)
	pos := 0

	readQuoted := func(start int) (string, error) {
		pos++ // opening quote
		var sb strings.Builder
		for pos < n && runes[pos] != '"' {
			if runes[pos] == '\\' && pos+1 < n {
				pos++
			}
			sb.WriteRune(runes[pos])
			pos++
		}
		if pos >= n {
			return "", &ParseError{
				Message:  "unclosed quoted string",
				Position: start,
				Context:  string(runes[start:min(start+20, n)]),
			}
		}
		pos++
		return sb.String(), nil
	}

	for pos < n {
		for pos < n && unicode.IsSpace(runes[pos]) {
			pos++
		}
		if pos >= n {
			break
		}
		start := pos

		if runes[pos] == '"' {
			s, err := readQuoted(start)
			if err != nil {
				return nil, err
			}
			if s != "" {
				tokens = append(tokens, queryToken{value: s, position: start})
			}
			continue
		}

		var sb strings.Builder
		for pos < n && !unicode.IsSpace(runes[pos]) && runes[pos] != '"' {
			sb.WriteRune(runes[pos])
			pos++
		}
		word := sb.String()

		colon := strings.Index(word, ":")
		if colon <= 0 {
			tokens = append(tokens, queryToken{value: word, position: start})
			continue
		}

		key, value := strings.ToLower(word[:colon]), word[colon+1:]
		if value == "" && pos < n && runes[pos] == '"' {
			s, err := readQuoted(start)
			if err != nil {
				return nil, err
			}
			value = s
		}
		tokens = append(tokens, queryToken{value: value, key: key, position: start, isFilter: true})
	}

	return tokens, nil
}

func parseQueryDate(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	}

	switch s {
	case "today":
		return day(now), nil
	case "yesterday":
		return day(now.AddDate(0, 0, -1)), nil
	case "lastweek", "last_week":
		return day(now.AddDate(0, 0, -7)), nil
	case "lastmonth", "last_month":
		return day(now.AddDate(0, -1, 0)), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}
