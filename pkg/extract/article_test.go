package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/reqlib/pkg/pattern"
)

const regulationText = `REGULATION (EU) 2022/2554
Whereas:
(1) Recital text.
Article 1
Subject matter
1. This Regulation lays down uniform requirements.
2. In relation to financial entities as referred to in Article 114 thereof.
Article 2
Scope
1. This Regulation applies to financial entities.
2. It also applies to ICT third-party service providers.
Article 3
Definitions
For the purposes of this Regulation the following definitions apply.`

func TestArticleSegmenterSplit(t *testing.T) {
	en := builtinLocale(t, "en")

	result := NewArticleSegmenter(0, nil).Split(regulationText, en)
	require.Len(t, result.Blocks, 3)

	for i, want := range []int{1, 2, 3} {
		assert.Equal(t, want, result.Blocks[i].Number)
		assert.True(t, strings.HasPrefix(result.Blocks[i].Text, fmt.Sprintf("Article %d", want)))
	}
	assert.Contains(t, result.Blocks[0].Text, "Article 114 thereof")
	assert.Empty(t, result.Discarded)
}

func TestArticleBlocksAreOrderedAndContiguous(t *testing.T) {
	en := builtinLocale(t, "en")
	result := NewArticleSegmenter(0, nil).Split(regulationText, en)
	require.NotEmpty(t, result.Blocks)

	var rebuilt strings.Builder
	for i, block := range result.Blocks {
		assert.Less(t, block.Start, block.End)
		if i > 0 {
			assert.Equal(t, result.Blocks[i-1].End, block.Start, "blocks must not overlap or leave gaps")
		}
		rebuilt.WriteString(regulationText[block.Start:block.End])
	}

	first := result.Blocks[0].Start
	assert.Equal(t, regulationText[first:], rebuilt.String())
	assert.Equal(t, len(regulationText), result.Blocks[len(result.Blocks)-1].End)
}

func TestArticleSegmenterPolicyFilters(t *testing.T) {
	en := builtinLocale(t, "en")
	text := "Article 17\nA\nArticle 18\nB\nArticle 0\nZero\nArticle 120\nC\nArticle 19\nD"

	result := NewArticleSegmenter(99, []int{17, 19}).Split(text, en)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, 17, result.Blocks[0].Number)
	assert.Equal(t, 19, result.Blocks[1].Number)
	assert.Equal(t, []int{18, 0, 120}, result.Discarded)

	// The discarded heading of article 18 still ends the block of article 17.
	assert.Equal(t, "Article 17\nA", result.Blocks[0].Text)
}

func TestArticleSegmenterMaxArticle(t *testing.T) {
	en := builtinLocale(t, "en")
	text := "Article 5\nA\nArticle 6\nB"

	result := NewArticleSegmenter(5, nil).Split(text, en)
	require.Len(t, result.Blocks, 1)
	assert.Equal(t, []int{6}, result.Discarded)
}

func TestArticleSegmenterFallback(t *testing.T) {
	strict := pattern.MustCompile(&pattern.LocalePattern{
		Lang:              "en",
		ArticleHeading:    `(?m)^ARTICLE (\d+)$`,
		ArticleFallback:   `(?i)(?:^|\n)\s*article\s+(\d+)\b`,
		MinArticleMatches: 2,
	})
	text := "Preamble\nArticle 1 Subject matter\nText one.\nArticle 2 Scope\nText two."

	result := NewArticleSegmenter(0, nil).Split(text, strict)
	assert.True(t, result.UsedFallback)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, "Article 1 Subject matter\nText one.", result.Blocks[0].Text)
	assert.Equal(t, strings.Index(text, "Article 1"), result.Blocks[0].Start)
}

func TestBuiltinFallbackFindsRunOnHeadings(t *testing.T) {
	var b strings.Builder
	b.WriteString("Preamble text.")
	for n := 1; n <= 12; n++ {
		fmt.Fprintf(&b, " Article %d Title %d\n(1) Obligation %d applies as referred to in Article 5 of this Regulation. end of previous page text.", n, n, n)
	}
	text := b.String()

	tests := []struct {
		name string
		lang string
		text string
	}{
		{name: "english", lang: "en", text: text},
		{name: "german", lang: "de", text: strings.ReplaceAll(text, "Article", "Artikel")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locale := builtinLocale(t, tt.lang)
			require.Empty(t, locale.Heading().FindAllString(tt.text, -1), "primary pattern must not see run-on headings")

			result := NewArticleSegmenter(0, nil).Split(tt.text, locale)
			assert.True(t, result.UsedFallback)
			require.Len(t, result.Blocks, 12)
			for i, block := range result.Blocks {
				assert.Equal(t, i+1, block.Number)
			}
			assert.True(t, strings.HasPrefix(result.Blocks[0].Text, strings.Fields(tt.text)[2]+" 1 Title 1\n(1) Obligation 1"), result.Blocks[0].Text)
			assert.True(t, strings.HasSuffix(result.Blocks[0].Text, "end of previous page text."), result.Blocks[0].Text)
		})
	}
}

func TestArticleSegmenterFallbackNotBetter(t *testing.T) {
	strict := pattern.MustCompile(&pattern.LocalePattern{
		Lang:            "en",
		ArticleHeading:  `(?m)^ARTICLE (\d+)$`,
		ArticleFallback: `(?m)^Art\. (\d+)$`,
	})
	text := "ARTICLE 1\nText one."

	result := NewArticleSegmenter(0, nil).Split(text, strict)
	assert.False(t, result.UsedFallback)
	require.Len(t, result.Blocks, 1)
}

func TestArticleSegmenterGerman(t *testing.T) {
	de := builtinLocale(t, "de")
	text := "Artikel 28\nAllgemeine Prinzipien\n(1) Erster.\n(2) Zweiter.\nArtikel 29\nVorläufige Bewertung\n(1) Text."

	result := NewArticleSegmenter(0, nil).Split(text, de)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, 28, result.Blocks[0].Number)
	assert.Equal(t, 29, result.Blocks[1].Number)
}

func TestArticleSegmenterNoHeadings(t *testing.T) {
	en := builtinLocale(t, "en")
	result := NewArticleSegmenter(0, nil).Split("No headings in this text.", en)
	assert.Empty(t, result.Blocks)
	assert.Zero(t, result.Matches)

	assert.Empty(t, NewArticleSegmenter(0, nil).Split("Article 1\nx", nil).Blocks)
}
