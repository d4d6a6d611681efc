package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVTT_BasicFormat(t *testing.T) {
	vttContent := `WEBVTT

1 "Alan Dickens" (1262511360)
00:00:05.579 --> 00:00:06.858
Go.

2 "Mitul Mehta" (3330436864)
00:00:06.000 --> 00:00:10.000
Thanks everyone for joining.
`

	tr, err := ParseVTT(strings.NewReader(vttContent))
	require.NoError(t, err)

	words := tr.Words()
	require.Len(t, words, 5)
	assert.Equal(t, Word{Text: "Go.", Start: 5579, End: 6858, Confidence: 1, Speaker: "Alan Dickens"}, words[0])

	// 4 words spread over 4 seconds
	assert.Equal(t, int64(6000), words[1].Start)
	assert.Equal(t, int64(7000), words[1].End)
	assert.Equal(t, int64(10000), words[4].End)
	assert.Equal(t, "Mitul Mehta", words[4].Speaker)

	assert.Equal(t, []string{"Alan Dickens", "Mitul Mehta"}, tr.Speakers())
	require.Len(t, tr.Sentences(), 2)
	assert.Equal(t, "Thanks everyone for joining.", tr.Sentences()[1].Text)
}

func TestParseVTT_MultiLineCue(t *testing.T) {
	vttContent := `WEBVTT

1 "Speaker" (1)
00:00:00.000 --> 00:00:02.000
first line
second line.
`

	tr, err := ParseVTT(strings.NewReader(vttContent))
	require.NoError(t, err)
	assert.Equal(t, "first line second line.", tr.Text())
}

func TestParseVTT_Empty(t *testing.T) {
	tr, err := ParseVTT(strings.NewReader("WEBVTT\n"))
	require.NoError(t, err)
	assert.True(t, tr.Empty())
}

func TestParseVTTTimestamp(t *testing.T) {
	assert.Equal(t, int64(0), parseVTTTimestamp("00:00:00.000"))
	assert.Equal(t, int64(3_723_004), parseVTTTimestamp("01:02:03.004"))
	assert.Equal(t, int64(0), parseVTTTimestamp("bogus"))
}
