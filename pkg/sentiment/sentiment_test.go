package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexiconClassifier(t *testing.T) {
	tests := []struct {
		name       string
		statements []string
		want       Label
		confidence float64
	}{
		{
			name:       "positive",
			statements: []string{"Great progress this week.", "I agree, thanks all."},
			want:       Positive,
			confidence: 1,
		},
		{
			name:       "negative",
			statements: []string{"The release is delayed.", "That is a real risk.", "Good point."},
			want:       Negative,
			confidence: 0.67,
		},
		{
			name:       "balanced",
			statements: []string{"Good news and bad news."},
			want:       Neutral,
			confidence: 0.5,
		},
		{
			name:       "no signal",
			statements: []string{"Next slide please."},
			want:       Neutral,
			confidence: 0,
		},
	}

	c := NewLexiconClassifier()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := c.Classify(context.Background(), tc.statements)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Sentiment)
			assert.InDelta(t, tc.confidence, res.Confidence, 1e-9)
			assert.NotEmpty(t, res.Examples)
			assert.LessOrEqual(t, len(res.Examples), MaxExamples)
		})
	}
}

func TestLexiconClassifier_ExamplesOrderedByStrength(t *testing.T) {
	res, err := NewLexiconClassifier().Classify(context.Background(), []string{
		"Okay.",
		"Great, excellent, perfect work.",
		"Good.",
		"Thanks.",
		"Nice and glad.",
	})
	require.NoError(t, err)
	require.Len(t, res.Examples, MaxExamples)
	assert.Equal(t, "Great, excellent, perfect work.", res.Examples[0])
	assert.Equal(t, "Nice and glad.", res.Examples[1])
}

func TestLexiconClassifier_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLexiconClassifier().Classify(ctx, []string{"good"})
	assert.ErrorIs(t, err, context.Canceled)
}
