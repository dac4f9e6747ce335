// Package extract segments normalized legal text into articles, paragraphs
// and lettered points, and emits the paragraph-level segments that are
// aligned across languages.
package extract

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/coolbeans/reqlib/pkg/pattern"
)

// DefaultMaxArticle is the highest article number accepted by default.
// Larger numbers are almost always citations of other instruments
// ("Article 114 thereof") rather than headings.
const DefaultMaxArticle = 99

// ArticleBlock is the text of one article, from its heading to the next
// heading. Start and End are byte offsets into the normalized text.
type ArticleBlock struct {
	Number int    `json:"number"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

// ArticleResult holds the blocks of a document plus diagnostics.
type ArticleResult struct {
	Blocks       []ArticleBlock `json:"blocks"`
	Matches      int            `json:"matches"`
	UsedFallback bool           `json:"used_fallback"`
	Discarded    []int          `json:"discarded,omitempty"`
}

// ArticleSegmenter splits normalized text into article blocks.
type ArticleSegmenter struct {
	// MaxArticle discards headings numbered above it. Zero means DefaultMaxArticle.
	MaxArticle int

	// Allowed restricts output to the listed articles when non-nil.
	Allowed map[int]bool
}

// NewArticleSegmenter creates a segmenter. An empty include list allows all
// articles up to maxArticle.
func NewArticleSegmenter(maxArticle int, include []int) *ArticleSegmenter {
	segmenter := &ArticleSegmenter{MaxArticle: maxArticle}
	if len(include) > 0 {
		segmenter.Allowed = make(map[int]bool, len(include))
		for _, n := range include {
			segmenter.Allowed[n] = true
		}
	}
	return segmenter
}

type headingMatch struct {
	number int
	start  int
}

// Split locates article headings with the locale's line-anchored pattern and
// returns the blocks in document order. When the primary pattern finds fewer
// headings than the locale minimum, the looser fallback pattern is used if it
// finds more. Every heading bounds the block before it, including headings
// whose article is then discarded by policy.
func (s *ArticleSegmenter) Split(text string, locale *pattern.LocalePattern) ArticleResult {
	var result ArticleResult
	if locale == nil || locale.Heading() == nil {
		return result
	}

	matches := findHeadings(text, locale.Heading().FindAllStringSubmatchIndex(text, -1))
	if len(matches) < locale.MinMatches() && locale.Fallback() != nil {
		fallback := findHeadings(text, locale.Fallback().FindAllStringSubmatchIndex(text, -1))
		if len(fallback) > len(matches) {
			matches = fallback
			result.UsedFallback = true
		}
	}
	result.Matches = len(matches)

	maxArticle := s.MaxArticle
	if maxArticle <= 0 {
		maxArticle = DefaultMaxArticle
	}

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}

		if m.number < 1 || m.number > maxArticle || (s.Allowed != nil && !s.Allowed[m.number]) {
			result.Discarded = append(result.Discarded, m.number)
			continue
		}

		result.Blocks = append(result.Blocks, ArticleBlock{
			Number: m.number,
			Start:  m.start,
			End:    end,
			Text:   strings.TrimSpace(text[m.start:end]),
		})
	}

	return result
}

// findHeadings converts submatch indexes into heading positions. The start
// is moved past leading whitespace and sentence punctuation so that patterns
// anchored on a preceding newline or sentence end still start the block at
// the heading word.
func findHeadings(text string, indexes [][]int) []headingMatch {
	matches := make([]headingMatch, 0, len(indexes))
	for _, idx := range indexes {
		if len(idx) < 4 || idx[2] < 0 {
			continue
		}
		number, err := strconv.Atoi(text[idx[2]:idx[3]])
		if err != nil {
			continue
		}

		start := idx[0]
		for start < idx[2] && (unicode.IsSpace(rune(text[start])) || strings.IndexByte(".;:", text[start]) >= 0) {
			start++
		}
		matches = append(matches, headingMatch{number: number, start: start})
	}
	return matches
}
