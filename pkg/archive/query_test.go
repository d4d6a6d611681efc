package archive

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

func TestParseQuery(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 4, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  ListOptions
	}{
		{
			name:  "empty",
			input: "   ",
			want:  ListOptions{},
		},
		{
			name:  "plain text",
			input: "budget  approval",
			want:  ListOptions{Query: "budget approval"},
		},
		{
			name:  "quoted phrase",
			input: `"launch date" slips`,
			want:  ListOptions{Query: "launch date slips"},
		},
		{
			name:  "filters",
			input: `meeting:m-42 label:launch,q1 Label:risk limit:5 budget`,
			want: ListOptions{
				MeetingID: "m-42",
				Labels:    []string{"launch", "q1", "risk"},
				Query:     "budget",
				Limit:     5,
			},
		},
		{
			name:  "quoted filter value",
			input: `meeting:"weekly sync"`,
			want:  ListOptions{MeetingID: "weekly sync"},
		},
		{
			name:  "dates",
			input: `after:2025-03-01 before:today`,
			want: ListOptions{
				Since: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				Until: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "relative since",
			input: `since:yesterday`,
			want:  ListOptions{Since: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:  "escaped quote",
			input: `"say \"hi\""`,
			want:  ListOptions{Query: `say "hi"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQueryAt(tt.input, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuery_Errors(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		wantMsg string
		wantPos int
	}{
		{`"unclosed`, "unclosed quoted string", 0},
		{`budget meeting:"open`, "unclosed quoted string", 7},
		{`owner:alice`, `unknown filter "owner"`, 0},
		{`x limit:0`, "limit must be a positive number", 2},
		{`after:someday`, "unable to parse date: someday", 0},
		{`label:`, "empty filter value", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseQueryAt(tt.input, now)
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantMsg, pe.Message)
			assert.Equal(t, tt.wantPos, pe.Position)
			assert.True(t, mcerrors.IsValidation(err))
		})
	}
}

func TestParseError_Error(t *testing.T) {
	err := &ParseError{Message: "bad", Position: 3}
	assert.Equal(t, "parse error at position 3: bad", err.Error())

	err.Context = "x:"
	assert.Equal(t, "parse error at position 3: bad (near 'x:')", err.Error())
}
