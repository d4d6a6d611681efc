// Package sentiment classifies the overall tone of meeting statements.
package sentiment

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Label is an overall sentiment.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Result is the outcome of classifying a set of statements.
type Result struct {
	Sentiment  Label    `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	Examples   []string `json:"examples"`
}

// Classifier classifies statements. Implementations may call remote services.
type Classifier interface {
	Classify(ctx context.Context, statements []string) (*Result, error)
}

// MaxExamples caps the number of example quotes in a Result.
const MaxExamples = 3

var (
	positiveWords = map[string]bool{
		"agree": true, "agreed": true, "great": true, "good": true, "excellent": true,
		"happy": true, "love": true, "perfect": true, "progress": true, "success": true,
		"successful": true, "thanks": true, "thank": true, "awesome": true, "excited": true,
		"nice": true, "win": true, "improved": true, "glad": true, "appreciate": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "blocked": true, "blocker": true, "concern": true, "concerned": true,
		"delay": true, "delayed": true, "disagree": true, "fail": true, "failed": true,
		"frustrated": true, "issue": true, "problem": true, "risk": true, "worried": true,
		"unfortunately": true, "broken": true, "late": true, "difficult": true, "worse": true,
	}
	tokenRegex = regexp.MustCompile(`[a-z']+`)
)

// LexiconClassifier scores statements by counting words from fixed positive
// and negative word lists.
type LexiconClassifier struct{}

// NewLexiconClassifier creates a LexiconClassifier.
func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{}
}

type scored struct {
	text  string
	score int
}

// Classify implements Classifier. Confidence is the share of sentiment-bearing
// words that agree with the winning label; statements with no such words are
// neutral with zero confidence.
func (c *LexiconClassifier) Classify(ctx context.Context, statements []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pos, neg int
	var all []scored
	for _, s := range statements {
		p, n := score(s)
		pos += p
		neg += n
		all = append(all, scored{text: s, score: p - n})
	}

	res := &Result{Sentiment: Neutral}
	total := pos + neg
	if total == 0 {
		res.Examples = firstN(statements, MaxExamples)
		return res, nil
	}

	switch {
	case pos > neg:
		res.Sentiment = Positive
		res.Confidence = float64(pos) / float64(total)
	case neg > pos:
		res.Sentiment = Negative
		res.Confidence = float64(neg) / float64(total)
	default:
		res.Confidence = 0.5
	}
	res.Confidence = math.Round(res.Confidence*100) / 100

	sort.SliceStable(all, func(i, j int) bool {
		switch res.Sentiment {
		case Positive:
			return all[i].score > all[j].score
		case Negative:
			return all[i].score < all[j].score
		default:
			return abs(all[i].score) < abs(all[j].score)
		}
	})
	for _, s := range all {
		if len(res.Examples) == MaxExamples {
			break
		}
		res.Examples = append(res.Examples, s.text)
	}
	return res, nil
}

func score(statement string) (pos, neg int) {
	for _, tok := range tokenRegex.FindAllString(strings.ToLower(statement), -1) {
		switch {
		case positiveWords[tok]:
			pos++
		case negativeWords[tok]:
			neg++
		}
	}
	return pos, neg
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
