package tools

import (
	"regexp"
	"strings"
)

var (
	punctuationRegex = regexp.MustCompile(`[^a-z0-9\s]+`)

	actionPhraseRegex = regexp.MustCompile(`(?i)\b(action item|follow[ -]up|i'll|we'll|i will|we will|will take|going to|need to|needs to|should|must|take care of|responsible for|assign(ed)? to|by (monday|tuesday|wednesday|thursday|friday|tomorrow|next week|end of))\b`)

	decisionRegex = regexp.MustCompile(`(?i)\b(decided|decide|decision|agreed|agree to|agree on|approved|approve|concluded|resolved|settled on|going with|go with|final(ized|ised)?|confirmed|chose|chosen|committed to|sign(ed)? off)\b`)

	numericDateRegex  = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`)
	monthDateRegex    = regexp.MustCompile(`(?i)\b(?:(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?|\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?))\b`)
	weekdayRegex      = regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?\b`)
	relativeDateRegex = regexp.MustCompile(`(?i)\b(?:today|tomorrow|tonight|next (?:week|month|quarter|year|sprint)|this (?:week|month|quarter|afternoon|evening)|end of (?:the )?(?:day|week|month|quarter|year)|in (?:a|one|two|three|four|\d+) (?:days?|weeks?|months?))\b`)

	schedulingPatterns = []*regexp.Regexp{numericDateRegex, monthDateRegex, weekdayRegex, relativeDateRegex}

	capitalizedNameRegex = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`)
)

var stopWords = wordSet(
	"about", "above", "actually", "after", "again", "against", "already", "also", "although", "always",
	"another", "anything", "around", "because", "been", "before", "being", "below", "between", "both",
	"could", "didn't", "doesn't", "doing", "don't", "down", "during", "each", "else", "even", "every",
	"everyone", "everything", "first", "from", "going", "gonna", "good", "great", "have", "having",
	"here", "into", "just", "know", "like", "little", "looking", "make", "maybe", "might", "more",
	"most", "much", "need", "okay", "only", "other", "over", "pretty", "really", "right", "said",
	"same", "should", "since", "some", "something", "still", "sure", "take", "than", "thank", "thanks",
	"that", "that's", "their", "them", "then", "there", "there's", "these", "they", "thing", "things",
	"think", "this", "those", "through", "time", "under", "until", "very", "want", "wanted", "well",
	"were", "what", "what's", "when", "where", "which", "while", "will", "with", "within", "without",
	"would", "yeah", "year", "your", "you're", "we're", "we've", "they're", "i'm", "it's", "let's",
	"basically", "probably", "definitely", "kind", "lot", "mean", "talk", "talking", "today",
	"tomorrow", "quite", "those", "whether", "another", "everybody", "somebody", "anyone", "someone",
)

// commonCapitalized are capitalized words that are not people's names.
var commonCapitalized = toSet(
	"i", "the", "a", "an", "and", "but", "or", "so", "if", "then", "yes", "no", "okay", "ok", "well",
	"hi", "hello", "hey", "thanks", "thank", "great", "good", "right", "sure", "also", "just", "let",
	"let's", "we", "you", "they", "he", "she", "it", "this", "that", "there", "what", "when", "where",
	"why", "how", "who", "which", "our", "my", "your", "their", "its", "in", "on", "at", "for", "to",
	"of", "with", "by", "from", "as", "is", "are", "was", "were", "be", "been", "do", "does", "did",
	"can", "could", "will", "would", "should", "may", "might", "must", "not", "all", "any", "some",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "june", "july", "august", "september", "october",
	"november", "december", "today", "tomorrow", "yesterday", "next", "last", "first", "one", "two",
	"now", "actually", "maybe", "perhaps", "anyway", "alright", "oh", "um", "uh", "like", "meeting",
	"team", "action", "item", "items", "agenda", "q1", "q2", "q3", "q4",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// wordSet builds a set in tokenize's normal form.
func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[strings.ReplaceAll(w, "'", "")] = true
	}
	return m
}

// tokenize lowercases text, strips punctuation and splits on whitespace.
func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	return strings.Fields(punctuationRegex.ReplaceAllString(text, " "))
}

// matchesName reports whether name refers to speaker: equal ignoring case, or
// a whole-word part of it ("alice" matches "Alice Smith").
func matchesName(speaker, name string) bool {
	speaker = strings.TrimSpace(speaker)
	name = strings.TrimSpace(name)
	if speaker == "" || name == "" {
		return false
	}
	if strings.EqualFold(speaker, name) {
		return true
	}
	for _, part := range strings.Fields(speaker) {
		if strings.EqualFold(part, name) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

// truncateRunes shortens s to at most n runes, appending an ellipsis when cut.
func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
