package extract

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/coolbeans/reqlib/pkg/citation"
	"github.com/coolbeans/reqlib/pkg/pattern"
)

// ErrNoArticles is returned for a document in which no article survived
// heading detection and the article filters.
var ErrNoArticles = errors.New("no articles found")

// Granularity controls how finely paragraphs are emitted as segments.
type Granularity string

const (
	// GranularityParagraph emits one segment per paragraph; inline points stay
	// in the paragraph text.
	GranularityParagraph Granularity = "paragraph"

	// GranularityPoint emits the paragraph intro and each lettered point as
	// separate segments.
	GranularityPoint Granularity = "point"
)

// Segment is the atomic unit of extracted text, aligned across languages by
// instrument and legal reference.
type Segment struct {
	InstrumentCode string `json:"instrument_code"`
	Lang           string `json:"lang"`
	LegalRef       string `json:"legal_ref"`
	Text           string `json:"text"`
	SourceHash     string `json:"source_hash"`
}

// Options configures the segmentation of one document.
type Options struct {
	InstrumentCode string
	Lang           string
	SourceHash     string
	Locale         *pattern.LocalePattern

	MaxArticle            int
	IncludeArticles       []int
	ExpectedMinParagraphs map[int]int
	Granularity           Granularity
}

// Validate checks that the options identify a document and a usable locale.
func (o Options) Validate() error {
	if o.InstrumentCode == "" {
		return errors.New("instrument code is required")
	}
	if o.Lang == "" {
		return errors.New("lang is required")
	}
	if o.SourceHash == "" {
		return fmt.Errorf("source hash is required for %s/%s", o.InstrumentCode, o.Lang)
	}
	if o.Locale == nil || !o.Locale.IsCompiled() {
		return fmt.Errorf("no compiled locale pattern for %s/%s", o.InstrumentCode, o.Lang)
	}
	switch o.Granularity {
	case "", GranularityParagraph, GranularityPoint:
	default:
		return fmt.Errorf("unknown granularity %q", o.Granularity)
	}
	return nil
}

// Stats describes how a document was segmented.
type Stats struct {
	InstrumentCode string         `json:"instrument_code"`
	Lang           string         `json:"lang"`
	TextLength     int            `json:"text_length"`
	HeadingMatches int            `json:"heading_matches"`
	Articles       int            `json:"articles"`
	UsedFallback   bool           `json:"used_fallback"`
	Discarded      []int          `json:"discarded_articles,omitempty"`
	Strategies     map[string]int `json:"strategies"`
	UnderExpected  []int          `json:"under_expected_articles,omitempty"`
	Paragraphs     int            `json:"paragraphs"`
	Segments       int            `json:"segments"`
}

// Segmenter runs the article, paragraph and point segmenters over one
// document.
type Segmenter struct {
	opts       Options
	articles   *ArticleSegmenter
	paragraphs *ParagraphSegmenter
}

// NewSegmenter validates opts and creates a Segmenter.
func NewSegmenter(opts Options) (*Segmenter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Granularity == "" {
		opts.Granularity = GranularityParagraph
	}
	return &Segmenter{
		opts:       opts,
		articles:   NewArticleSegmenter(opts.MaxArticle, opts.IncludeArticles),
		paragraphs: NewParagraphSegmenter(opts.ExpectedMinParagraphs),
	}, nil
}

// Segment splits normalized text into segments in document order.
func (s *Segmenter) Segment(text string) ([]Segment, Stats) {
	stats := Stats{
		InstrumentCode: s.opts.InstrumentCode,
		Lang:           s.opts.Lang,
		TextLength:     len(text),
		Strategies:     make(map[string]int),
	}

	articles := s.articles.Split(text, s.opts.Locale)
	stats.HeadingMatches = articles.Matches
	stats.Articles = len(articles.Blocks)
	stats.UsedFallback = articles.UsedFallback
	stats.Discarded = articles.Discarded

	var segments []Segment
	underExpected := make(map[int]bool)
	for _, block := range articles.Blocks {
		result := s.paragraphs.Split(block.Text, block.Number)
		stats.Strategies[result.Strategy]++
		stats.Paragraphs += len(result.Paragraphs)
		if result.UnderExpected {
			underExpected[block.Number] = true
		}

		for _, paragraph := range result.Paragraphs {
			segments = append(segments, s.emit(block.Number, paragraph)...)
		}
	}

	for article := range underExpected {
		stats.UnderExpected = append(stats.UnderExpected, article)
	}
	sort.Ints(stats.UnderExpected)
	stats.Segments = len(segments)
	return segments, stats
}

func (s *Segmenter) emit(article int, paragraph Paragraph) []Segment {
	number, err := strconv.Atoi(paragraph.Label)
	if err != nil {
		// Labels are captured digits or synthetic numbers.
		number = 0
	}
	paragraphRef := citation.FormatRef(article, number, "")

	if s.opts.Granularity != GranularityPoint {
		return []Segment{s.segment(paragraphRef, paragraph.Text)}
	}

	intro, points := SplitPoints(paragraph.Text)
	if len(points) == 1 && points[0].Letter == "" {
		return []Segment{s.segment(paragraphRef, paragraph.Text)}
	}

	segments := make([]Segment, 0, len(points)+1)
	if intro != "" {
		segments = append(segments, s.segment(paragraphRef, intro))
	}
	for _, point := range points {
		segments = append(segments, s.segment(citation.FormatRef(article, number, point.Letter), point.Text))
	}
	return segments
}

func (s *Segmenter) segment(ref, text string) Segment {
	return Segment{
		InstrumentCode: s.opts.InstrumentCode,
		Lang:           s.opts.Lang,
		LegalRef:       ref,
		Text:           text,
		SourceHash:     s.opts.SourceHash,
	}
}
