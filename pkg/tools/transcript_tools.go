package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// MaxSearchExcerpts caps the excerpts returned by searchTranscript.
const MaxSearchExcerpts = 10

// Excerpt is one search hit.
type Excerpt struct {
	Timestamp string `json:"timestamp"`
	StartMs   int64  `json:"startMs"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
}

func formatExcerpt(s transcript.Sentence) string {
	if sp := s.Speaker(); sp != "" {
		return fmt.Sprintf("[%s] %s: %s", transcript.FormatTimestamp(s.StartTime), sp, s.Text)
	}
	return fmt.Sprintf("[%s] %s", transcript.FormatTimestamp(s.StartTime), s.Text)
}

func (tb *Toolbox) searchTranscript(ctx context.Context, args *SearchTranscriptArgs) (Result, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return Result{}, malformed("A search query is required.")
	}

	_, t, err := tb.loadTranscript(ctx)
	if err != nil {
		return Result{}, err
	}

	matches := transcript.Search(t.Sentences(), query)
	if len(matches) == 0 {
		return empty(SearchTranscript, fmt.Sprintf("No matches found for %q.", query)), nil
	}

	shown := matches
	if len(shown) > MaxSearchExcerpts {
		shown = shown[:MaxSearchExcerpts]
	}

	lines := make([]string, 0, len(shown)+1)
	excerpts := make([]Excerpt, 0, len(shown))
	for _, m := range shown {
		lines = append(lines, formatExcerpt(m.Sentence))
		excerpts = append(excerpts, Excerpt{
			Timestamp: transcript.FormatTimestamp(m.Sentence.StartTime),
			StartMs:   m.Sentence.StartTime,
			Speaker:   m.Sentence.Speaker(),
			Text:      m.Sentence.Text,
		})
	}
	if extra := len(matches) - len(shown); extra > 0 {
		lines = append(lines, fmt.Sprintf("...and %d more matches.", extra))
	}

	return ok(SearchTranscript, strings.Join(lines, "\n"), map[string]any{
		"total":    len(matches),
		"excerpts": excerpts,
	}), nil
}

// ParticipantStat is the speaking activity of one participant.
type ParticipantStat struct {
	Name          string `json:"name"`
	SpeakingTurns int    `json:"speakingTurns"`
}

func participantStats(t *transcript.Transcript) []ParticipantStat {
	counts := make(map[string]int)
	var order []string
	for _, turn := range t.Turns() {
		if turn.Speaker == "" {
			continue
		}
		if _, seen := counts[turn.Speaker]; !seen {
			order = append(order, turn.Speaker)
		}
		counts[turn.Speaker]++
	}

	stats := make([]ParticipantStat, 0, len(order))
	for _, name := range order {
		stats = append(stats, ParticipantStat{Name: name, SpeakingTurns: counts[name]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].SpeakingTurns > stats[j].SpeakingTurns
	})
	return stats
}

func formatStat(s ParticipantStat) string {
	return fmt.Sprintf("%s: %d speaking turns", s.Name, s.SpeakingTurns)
}

func (tb *Toolbox) participantStats(ctx context.Context, args *ParticipantArgs) (Result, error) {
	_, t, err := tb.loadTranscript(ctx)
	if err != nil {
		return Result{}, err
	}

	stats := participantStats(t)
	if len(stats) == 0 {
		return empty(GetParticipantStats, msgNoSpeakers), nil
	}

	if name := strings.TrimSpace(args.Participant); name != "" {
		for _, s := range stats {
			if matchesName(s.Name, name) {
				return ok(GetParticipantStats, formatStat(s), s), nil
			}
		}
		return empty(GetParticipantStats, fmt.Sprintf("No participant named %q was found in this meeting.", name)), nil
	}

	lines := make([]string, len(stats))
	for i, s := range stats {
		lines[i] = formatStat(s)
	}
	return ok(GetParticipantStats, strings.Join(lines, "\n"), stats), nil
}

// TopicCount is one identified topic.
type TopicCount struct {
	Word     string `json:"word"`
	Mentions int    `json:"mentions"`
}

// MaxTopics caps the topics returned by identifyTopics.
const MaxTopics = 10

// rankTopics counts content words longer than four characters and keeps those
// mentioned more than twice, most frequent first.
func rankTopics(text string) []TopicCount {
	counts := make(map[string]int)
	for _, w := range tokenize(text) {
		if len(w) <= 4 || stopWords[w] {
			continue
		}
		counts[w]++
	}

	var topics []TopicCount
	for w, n := range counts {
		if n > 2 {
			topics = append(topics, TopicCount{Word: w, Mentions: n})
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Mentions != topics[j].Mentions {
			return topics[i].Mentions > topics[j].Mentions
		}
		return topics[i].Word < topics[j].Word
	})
	if len(topics) > MaxTopics {
		topics = topics[:MaxTopics]
	}
	return topics
}

func (tb *Toolbox) topics(ctx context.Context) (Result, error) {
	if _, err := tb.loadMeeting(ctx); err != nil {
		return Result{}, err
	}

	text, err := tb.analysisText(ctx)
	if err != nil {
		return Result{}, err
	}

	topics := rankTopics(text)
	if len(topics) == 0 {
		return empty(IdentifyTopics, msgNoTopics), nil
	}

	lines := make([]string, len(topics))
	for i, tc := range topics {
		lines[i] = fmt.Sprintf("%s (%d mentions)", tc.Word, tc.Mentions)
	}
	return ok(IdentifyTopics, strings.Join(lines, "\n"), topics), nil
}

// analysisText returns the transcript text, or the summary text when the
// meeting has no transcript.
func (tb *Toolbox) analysisText(ctx context.Context) (string, error) {
	t, err := tb.loadOptionalTranscript(ctx)
	if err != nil {
		return "", err
	}
	if t != nil {
		return t.Text(), nil
	}
	sum, err := tb.loadSummary(ctx)
	if err != nil {
		return "", err
	}
	if sum != nil {
		return sum.Text, nil
	}
	return "", nil
}

// SchedulingMention is a sentence that references a date or time.
type SchedulingMention struct {
	Timestamp string   `json:"timestamp,omitempty"`
	Sentence  string   `json:"sentence"`
	Matches   []string `json:"matches"`
}

func schedulingMatches(sentence string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, re := range schedulingPatterns {
		for _, m := range re.FindAllString(sentence, -1) {
			key := strings.ToLower(m)
			if !seen[key] {
				seen[key] = true
				found = append(found, m)
			}
		}
	}
	return found
}

func (tb *Toolbox) schedulingInfo(ctx context.Context) (Result, error) {
	if _, err := tb.loadMeeting(ctx); err != nil {
		return Result{}, err
	}

	sentences, err := tb.analysisSentences(ctx)
	if err != nil {
		return Result{}, err
	}

	var mentions []SchedulingMention
	var lines []string
	seen := make(map[string]bool)
	for _, s := range sentences {
		matches := schedulingMatches(s.Text)
		if len(matches) == 0 || seen[s.Text] {
			continue
		}
		seen[s.Text] = true

		mention := SchedulingMention{Sentence: s.Text, Matches: matches}
		line := "- " + s.Text
		if len(s.Words) > 0 {
			mention.Timestamp = transcript.FormatTimestamp(s.StartTime)
			line = fmt.Sprintf("- [%s] %s", mention.Timestamp, s.Text)
		}
		mentions = append(mentions, mention)
		lines = append(lines, line)
	}

	if len(mentions) == 0 {
		return empty(FindSchedulingInfo, msgNoScheduling), nil
	}
	return ok(FindSchedulingInfo, strings.Join(lines, "\n"), mentions), nil
}

// analysisSentences returns the transcript sentences, or sentences split from
// the summary when the meeting has no transcript.
func (tb *Toolbox) analysisSentences(ctx context.Context) ([]transcript.Sentence, error) {
	t, err := tb.loadOptionalTranscript(ctx)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t.Sentences(), nil
	}
	sum, err := tb.loadSummary(ctx)
	if err != nil || sum == nil {
		return nil, err
	}
	var out []transcript.Sentence
	for _, s := range transcript.SplitSentences(sum.Text) {
		out = append(out, transcript.Sentence{Text: s, Confidence: 1})
	}
	return out, nil
}

// PersonMention is a non-participant named in the meeting.
type PersonMention struct {
	Name     string `json:"name"`
	Mentions int    `json:"mentions"`
	Context  string `json:"context,omitempty"`
}

// compileNamePattern creates a word-boundary regex for a name.
func compileNamePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// mentionedPeople finds capitalized names that never appear in lowercase,
// excluding known attendees and common capitalized words.
func mentionedPeople(text string, attendees []string) []PersonMention {
	excluded := make(map[string]bool)
	for _, a := range attendees {
		excluded[strings.ToLower(a)] = true
		for _, part := range strings.Fields(a) {
			excluded[strings.ToLower(part)] = true
		}
	}

	lowerWords := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,!?;:\"()")
		if w != "" && w == strings.ToLower(w) {
			lowerWords[w] = true
		}
	}

	isName := func(word string) bool {
		lw := strings.ToLower(word)
		return !excluded[lw] && !commonCapitalized[lw] && !lowerWords[lw]
	}

	seen := make(map[string]bool)
	var people []PersonMention
	for _, candidate := range capitalizedNameRegex.FindAllString(text, -1) {
		parts := strings.Fields(candidate)
		// Trim leading or trailing words that are not names ("Thanks Sarah").
		for len(parts) > 0 && !isName(parts[0]) {
			parts = parts[1:]
		}
		for len(parts) > 0 && !isName(parts[len(parts)-1]) {
			parts = parts[:len(parts)-1]
		}
		if len(parts) == 0 {
			continue
		}
		name := strings.Join(parts, " ")
		if seen[name] {
			continue
		}
		seen[name] = true

		locs := compileNamePattern(name).FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		people = append(people, PersonMention{
			Name:     name,
			Mentions: len(locs),
			Context:  extractContext(text, locs[0][0], locs[0][1]),
		})
	}

	// A first name counted on its own also matches inside the full name.
	for i := range people {
		for j := range people {
			if i != j && strings.HasPrefix(people[j].Name, people[i].Name+" ") {
				people[i].Mentions -= people[j].Mentions
			}
		}
	}

	kept := people[:0]
	for _, p := range people {
		if p.Mentions > 0 {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Mentions > kept[j].Mentions
	})
	return kept
}

// extractContext returns a snippet of text around the match position.
func extractContext(text string, start, end int) string {
	const contextRadius = 50

	contextStart := start - contextRadius
	if contextStart < 0 {
		contextStart = 0
	}
	contextEnd := end + contextRadius
	if contextEnd > len(text) {
		contextEnd = len(text)
	}

	for contextStart > 0 && text[contextStart] != ' ' {
		contextStart--
	}
	for contextEnd < len(text) && text[contextEnd] != ' ' {
		contextEnd++
	}
	return strings.TrimSpace(text[contextStart:contextEnd])
}

func (tb *Toolbox) peopleMentioned(ctx context.Context) (Result, error) {
	m, err := tb.loadMeeting(ctx)
	if err != nil {
		return Result{}, err
	}

	t, err := tb.loadOptionalTranscript(ctx)
	if err != nil {
		return Result{}, err
	}
	attendees := append([]string{}, m.Participants...)
	var text string
	if t != nil {
		text = t.Text()
		attendees = append(attendees, t.Speakers()...)
	} else if text, err = tb.analysisText(ctx); err != nil {
		return Result{}, err
	}

	people := mentionedPeople(text, attendees)
	if len(people) == 0 {
		return empty(FindPeopleMentioned, msgNoPeople), nil
	}

	lines := make([]string, len(people))
	for i, p := range people {
		lines[i] = fmt.Sprintf("%s (%d %s)", p.Name, p.Mentions, plural(p.Mentions, "mention", "mentions"))
	}
	return ok(FindPeopleMentioned, strings.Join(lines, "\n"), people), nil
}
