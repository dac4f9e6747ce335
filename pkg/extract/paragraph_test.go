package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(paragraphs []Paragraph) []string {
	out := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		out[i] = p.Label
	}
	return out
}

func TestParagraphSegmenterNumbered(t *testing.T) {
	tests := []struct {
		name   string
		block  string
		labels []string
	}{
		{
			name:   "parenthesised markers",
			block:  "Article 28\nGeneral principles\n(1) First.\n(2) Second.\n(3) Third.",
			labels: []string{"1", "2", "3"},
		},
		{
			name:   "dotted markers",
			block:  "Article 17\nICT-related incident management process\n1. First.\n2. Second.",
			labels: []string{"1", "2"},
		},
		{
			name:   "multi-line title",
			block:  "Article 30\nKey contractual\nprovisions\n1. First.\n2. Second.",
			labels: []string{"1", "2"},
		},
		{
			name:   "spaced markers",
			block:  "Article 4\nTitle\n( 1 ) First.\n( 2 ) Second.",
			labels: []string{"1", "2"},
		},
	}

	segmenter := NewParagraphSegmenter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := segmenter.Split(tt.block, 0)
			assert.Equal(t, StrategyNumbered, result.Strategy)
			assert.Equal(t, tt.labels, labels(result.Paragraphs))
			assert.False(t, result.UnderExpected)
		})
	}
}

func TestNumberedCountEqualsMarkerCount(t *testing.T) {
	body := "(1) One.\n(2) Two, see point (a) below.\n(3) Three.\n4. Four.\n(5) Five."
	paragraphs, ok := NumberedStrategy{}.Split(body)
	require.True(t, ok)
	assert.Len(t, paragraphs, len(paragraphMarkerPattern.FindAllString(body, -1)))
	assert.Equal(t, "4. Four.", paragraphs[3].Text)
}

func TestNumberedRequiresTwoMarkers(t *testing.T) {
	_, ok := NumberedStrategy{}.Split("(1) Only one.")
	assert.False(t, ok)
}

func TestBlankLineChunksGetSyntheticLabels(t *testing.T) {
	paragraphs, ok := BlankLineStrategy{}.Split("first chunk without markers\n\n  \nsecond chunk without markers")
	require.True(t, ok)
	assert.Equal(t, []Paragraph{
		{Label: "1", Text: "first chunk without markers"},
		{Label: "2", Text: "second chunk without markers"},
	}, paragraphs)

	result := NewParagraphSegmenter(nil).Split("Article 5\nfirst chunk.\n\nsecond chunk.", 5)
	assert.Equal(t, StrategyBlankLines, result.Strategy)
	assert.Equal(t, []string{"1", "2"}, labels(result.Paragraphs))
}

func TestCapitalizedLineStrategy(t *testing.T) {
	paragraphs, ok := CapitalizedLineStrategy{}.Split("First paragraph wraps\nonto a second line.\nÜbergang beginnt hier.\nSecond one.")
	require.True(t, ok)
	require.Len(t, paragraphs, 3)
	assert.Equal(t, "First paragraph wraps\nonto a second line.", paragraphs[0].Text)
	assert.Equal(t, "Übergang beginnt hier.", paragraphs[1].Text)
	assert.Equal(t, "3", paragraphs[2].Label)

	_, ok = CapitalizedLineStrategy{}.Split("single line")
	assert.False(t, ok)
}

func TestExpectedMinimumTriggersFallback(t *testing.T) {
	block := "Article 30\nKey contractual provisions\n(1) The rights shall be set out.\nThe contract shall include a description.\nThe contract shall include locations."
	segmenter := NewParagraphSegmenter(map[int]int{30: 3})

	result := segmenter.Split(block, 30)
	assert.Equal(t, StrategyCapitalizedLines, result.Strategy)
	assert.Len(t, result.Paragraphs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, labels(result.Paragraphs))
	assert.False(t, result.UnderExpected)
}

func TestExpectedMinimumNumberedResultStands(t *testing.T) {
	block := "Article 19\nReporting\n(1) A.\n(2) B.\nC continues.\nD more."

	result := NewParagraphSegmenter(map[int]int{19: 4}).Split(block, 19)
	assert.Equal(t, StrategyNumbered, result.Strategy)
	assert.Len(t, result.Paragraphs, 2)
	assert.True(t, result.UnderExpected)

	result = NewParagraphSegmenter(map[int]int{19: 3}).Split(block, 19)
	assert.Equal(t, StrategyCapitalizedLines, result.Strategy)
	assert.Len(t, result.Paragraphs, 3)

	result = NewParagraphSegmenter(map[int]int{30: 3}).Split(block, 19)
	assert.Equal(t, StrategyNumbered, result.Strategy, "minimum of another article must not apply")
}

func TestSingleAndEmptyBodies(t *testing.T) {
	segmenter := NewParagraphSegmenter(nil)

	result := segmenter.Split("Article 9\nthe whole body is one sentence.", 9)
	assert.Equal(t, StrategySingle, result.Strategy)
	assert.Equal(t, []Paragraph{{Label: "1", Text: "the whole body is one sentence."}}, result.Paragraphs)

	result = segmenter.Split("Article 9", 9)
	assert.Equal(t, StrategyEmpty, result.Strategy)
	assert.Empty(t, result.Paragraphs)

	result = segmenter.Split("", 9)
	assert.Equal(t, StrategyEmpty, result.Strategy)
}

func TestSubtitleDroppedWithoutMarkers(t *testing.T) {
	segmenter := NewParagraphSegmenter(nil)

	result := segmenter.Split("Article 3\nDefinitions\nFor the purposes of this Regulation, the following definitions apply.", 3)
	assert.Equal(t, StrategySingle, result.Strategy)
	assert.Equal(t, []Paragraph{{Label: "1", Text: "For the purposes of this Regulation, the following definitions apply."}}, result.Paragraphs)

	result = segmenter.Split("Article 30\nKey contractual\nprovisions\nThe rights shall be set out in writing.", 30)
	assert.Equal(t, []Paragraph{{Label: "1", Text: "The rights shall be set out in writing."}}, result.Paragraphs)
}

func TestArticleBody(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  string
	}{
		{
			name:  "title before marker",
			block: "Article 20\nHarmonisation of reporting\n1. The ESAs shall develop.",
			want:  "1. The ESAs shall develop.",
		},
		{
			name:  "bare marker line",
			block: "Article 17\nIncident management\n1.\nFirst.\n2.\nSecond.",
			want:  "1.\nFirst.\n2.\nSecond.",
		},
		{
			name:  "wrapped sentence kept",
			block: "Article 20\nThe ESAs shall develop\ncommon draft standards.",
			want:  "The ESAs shall develop\ncommon draft standards.",
		},
		{
			name:  "lower case title candidate kept",
			block: "Article 20\nharmonisation of reporting\nThe ESAs shall develop standards.",
			want:  "harmonisation of reporting\nThe ESAs shall develop standards.",
		},
		{
			name:  "single body line kept",
			block: "Article 17\nA",
			want:  "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, articleBody(tt.block))
		})
	}
}

func TestBareMarkerLinesAreNumbered(t *testing.T) {
	result := NewParagraphSegmenter(nil).Split("Article 17\nIncident management\n1.\nFirst obligation.\n2.\nSecond obligation.", 17)
	assert.Equal(t, StrategyNumbered, result.Strategy)
	assert.Equal(t, []string{"1", "2"}, labels(result.Paragraphs))
}

func TestCustomStrategyChain(t *testing.T) {
	segmenter := &ParagraphSegmenter{Strategies: []Strategy{BlankLineStrategy{}}}
	result := segmenter.Split("Article 1\n(1) One.\n(2) Two.", 1)
	assert.Equal(t, StrategySingle, result.Strategy)
	assert.Len(t, result.Paragraphs, 1)
}
