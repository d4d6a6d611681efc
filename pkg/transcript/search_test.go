package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_CaseInsensitive(t *testing.T) {
	sentences := []Sentence{
		{Text: "The Budget is approved."},
		{Text: "Next item."},
		{Text: "budget review on Friday."},
	}

	matches := Search(sentences, "BUDGET")
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Index)
	assert.Equal(t, 2, matches[1].Index)

	assert.Empty(t, Search(sentences, "   "))
	assert.Empty(t, Search(sentences, "roadmap"))
}

func TestHighlight_PreservesCasing(t *testing.T) {
	frags := Highlight("Budget talk: the BUDGET and budget.", "budget")

	require.Len(t, frags, 6)
	assert.Equal(t, Fragment{Text: "Budget", Match: true}, frags[0])
	assert.Equal(t, Fragment{Text: " talk: the "}, frags[1])
	assert.Equal(t, Fragment{Text: "BUDGET", Match: true}, frags[2])
	assert.Equal(t, Fragment{Text: "budget", Match: true}, frags[4])
	assert.Equal(t, Fragment{Text: "."}, frags[5])
}

func TestHighlight_RegexMetacharacters(t *testing.T) {
	frags := Highlight("cost is $5 (approx.)", "(approx.)")
	require.Len(t, frags, 2)
	assert.True(t, frags[1].Match)
	assert.Equal(t, "(approx.)", frags[1].Text)
}

func TestHighlight_NoQuery(t *testing.T) {
	assert.Equal(t, []Fragment{{Text: "plain"}}, Highlight("plain", ""))
}

func TestHighlightWith(t *testing.T) {
	out := HighlightWith("Ship it, ship IT", "ship", func(s string) string {
		return "[" + strings.ToUpper(s) + "]"
	})
	assert.Equal(t, "[SHIP] it, [SHIP] IT", out)
}
