package transcript

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// VTT parsing regular expressions
var (
	// Matches cue header: 1 "Speaker Name" (speaker_id) or just: 1 "" (0)
	vttCueHeaderRegex = regexp.MustCompile(`^\d+\s+"([^"]*)"(?:\s+\((\d+)\))?`)

	// Matches timestamp line: 00:00:05.579 --> 00:00:06.858
	vttTimestampRegex = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}\.\d{3})\s+-->\s+(\d{2}:\d{2}:\d{2}\.\d{3})`)
)

type vttCue struct {
	speaker string
	startMs int64
	endMs   int64
	lines   []string
}

// ParseVTT parses a WebVTT caption file into a word-level transcript. Cue
// timing is spread evenly across the cue's words; captions carry no
// per-word confidence, so every word gets 1.0.
func ParseVTT(r io.Reader) (*Transcript, error) {
	scanner := bufio.NewScanner(r)

	var cues []vttCue
	var current *vttCue

	flush := func() {
		if current != nil && len(current.lines) > 0 {
			cues = append(cues, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || line == "WEBVTT" {
			continue
		}

		if matches := vttCueHeaderRegex.FindStringSubmatch(line); matches != nil {
			flush()
			current = &vttCue{speaker: matches[1]}
			continue
		}

		if matches := vttTimestampRegex.FindStringSubmatch(line); matches != nil {
			if current == nil || len(current.lines) > 0 {
				// Cue without a numbered header keeps the previous speaker.
				speaker := ""
				if current != nil {
					speaker = current.speaker
				} else if n := len(cues); n > 0 {
					speaker = cues[n-1].speaker
				}
				flush()
				current = &vttCue{speaker: speaker}
			}
			current.startMs = parseVTTTimestamp(matches[1])
			current.endMs = parseVTTTimestamp(matches[2])
			continue
		}

		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var words []Word
	for _, c := range cues {
		words = append(words, cueWords(c)...)
	}
	return New("", words), nil
}

func cueWords(c vttCue) []Word {
	fields := strings.Fields(strings.Join(c.lines, " "))
	if len(fields) == 0 {
		return nil
	}

	span := c.endMs - c.startMs
	if span < 0 {
		span = 0
	}
	step := span / int64(len(fields))

	words := make([]Word, len(fields))
	for i, f := range fields {
		start := c.startMs + int64(i)*step
		end := start + step
		if i == len(fields)-1 {
			end = c.endMs
		}
		words[i] = Word{Text: f, Start: start, End: end, Confidence: 1, Speaker: c.speaker}
	}
	return words
}

// parseVTTTimestamp parses a VTT timestamp (HH:MM:SS.mmm) to milliseconds.
func parseVTTTimestamp(ts string) int64 {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, _ := strconv.ParseInt(parts[0], 10, 64)
	minutes, _ := strconv.ParseInt(parts[1], 10, 64)

	secParts := strings.Split(parts[2], ".")
	seconds, _ := strconv.ParseInt(secParts[0], 10, 64)
	var milliseconds int64
	if len(secParts) > 1 {
		milliseconds, _ = strconv.ParseInt(secParts[1], 10, 64)
	}

	return hours*3_600_000 + minutes*60_000 + seconds*1000 + milliseconds
}
