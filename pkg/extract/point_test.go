package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPoints(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		intro   string
		letters []string
	}{
		{
			name:    "line start markers",
			text:    "2. The contract shall include:\n(a) a description;\n(b) the locations;\n(c) provisions on availability.",
			intro:   "2. The contract shall include:",
			letters: []string{"a", "b", "c"},
		},
		{
			name:    "inline run",
			text:    "(2) Second obligation, including (a) sub-point one and (b) sub-point two.",
			intro:   "(2) Second obligation, including",
			letters: []string{"a", "b"},
		},
		{
			name:    "inline run ignores out of sequence letters",
			text:    "Including (a) one, as in point (d) of Article 3, and (b) two.",
			intro:   "Including",
			letters: []string{"a", "b"},
		},
		{
			name:    "lone cross reference",
			text:    "As referred to in point (c) of paragraph 1.",
			letters: []string{""},
		},
		{
			name:    "no markers",
			text:    "Plain paragraph.",
			letters: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intro, points := SplitPoints(tt.text)
			assert.Equal(t, tt.intro, intro)

			letters := make([]string, len(points))
			for i, p := range points {
				letters[i] = p.Letter
			}
			assert.Equal(t, tt.letters, letters)
		})
	}
}

func TestSplitPointsText(t *testing.T) {
	_, points := SplitPoints("Intro:\n(a) first;\n(b) second.")
	require.Len(t, points, 2)
	assert.Equal(t, "(a) first;", points[0].Text)
	assert.Equal(t, "(b) second.", points[1].Text)

	intro, points := SplitPoints("  Plain paragraph.  ")
	assert.Empty(t, intro)
	assert.Equal(t, []Point{{Text: "Plain paragraph."}}, points)
}
