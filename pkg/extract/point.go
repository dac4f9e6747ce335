package extract

import (
	"regexp"
	"strings"
)

var (
	pointLinePattern   = regexp.MustCompile(`(?m)^\s*\(\s*([a-z])\s*\)\s+`)
	pointInlinePattern = regexp.MustCompile(`\(([a-z])\)\s`)
)

// Point is a lettered sub-point of a paragraph. Letter is empty for the
// single unlabeled point of a paragraph without markers.
type Point struct {
	Letter string `json:"letter,omitempty"`
	Text   string `json:"text"`
}

// SplitPoints splits a paragraph on "(a)", "(b)", ... markers. Markers at line
// start are preferred. Without them, inline markers are accepted only as a
// run of consecutive letters starting at "(a)" of at least two, so a lone
// "(c)" cross-reference or a roman "(i)" is not mistaken for a list.
//
// intro is the text before the first marker. A paragraph without markers
// yields one unlabeled point holding the whole text.
func SplitPoints(text string) (intro string, points []Point) {
	starts, letters := linePointMarkers(text)
	if len(starts) == 0 {
		starts, letters = inlinePointMarkers(text)
	}
	if len(starts) == 0 {
		return "", []Point{{Text: strings.TrimSpace(text)}}
	}

	points = make([]Point, 0, len(starts))
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		points = append(points, Point{
			Letter: letters[i],
			Text:   strings.TrimSpace(text[start:end]),
		})
	}
	return strings.TrimSpace(text[:starts[0]]), points
}

func linePointMarkers(text string) (starts []int, letters []string) {
	for _, m := range pointLinePattern.FindAllStringSubmatchIndex(text, -1) {
		start := m[0]
		for start < m[2] && text[start] != '(' {
			start++
		}
		starts = append(starts, start)
		letters = append(letters, text[m[2]:m[3]])
	}
	return starts, letters
}

func inlinePointMarkers(text string) (starts []int, letters []string) {
	next := byte('a')
	for _, m := range pointInlinePattern.FindAllStringSubmatchIndex(text, -1) {
		letter := text[m[2]]
		if letter != next {
			continue
		}
		starts = append(starts, m[0])
		letters = append(letters, string(letter))
		next++
	}
	if len(starts) < 2 {
		return nil, nil
	}
	return starts, letters
}
