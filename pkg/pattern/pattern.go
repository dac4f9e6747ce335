// Package pattern provides a registry of locale-specific heading patterns used
// to segment legal instruments into articles.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMinArticleMatches is the number of primary heading matches below which
// a document is assumed to have lost its heading layout.
const DefaultMinArticleMatches = 10

// LocalePattern defines how article headings look in one language.
type LocalePattern struct {
	// Metadata
	Lang    string `yaml:"lang" json:"lang"`
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	// ArticleHeading matches a heading line anchored at line start.
	// Capture group 1 must hold the article number.
	ArticleHeading string `yaml:"article_heading" json:"article_heading"`

	// ArticleFallback is a looser heading pattern tried when ArticleHeading
	// yields fewer than MinArticleMatches matches. Optional.
	ArticleFallback string `yaml:"article_fallback,omitempty" json:"article_fallback,omitempty"`

	// MinArticleMatches overrides DefaultMinArticleMatches when positive.
	MinArticleMatches int `yaml:"min_article_matches,omitempty" json:"min_article_matches,omitempty"`

	// HeadingWords are the words this language uses for "Article" in legal
	// references ("Article", "Artikel", "Art"). They fold to one abbreviation
	// when alignment keys are built.
	HeadingWords []string `yaml:"heading_words" json:"heading_words"`

	// Compiled patterns (populated after loading)
	compiled *CompiledPattern
}

// CompiledPattern holds the compiled regexes of a LocalePattern.
type CompiledPattern struct {
	Heading  *regexp.Regexp
	Fallback *regexp.Regexp
}

// Validate checks that the pattern has the fields required for segmentation.
func (lp *LocalePattern) Validate() error {
	if strings.TrimSpace(lp.Lang) == "" {
		return fmt.Errorf("lang is required")
	}
	if strings.TrimSpace(lp.ArticleHeading) == "" {
		return fmt.Errorf("article_heading is required for %q", lp.Lang)
	}
	if lp.MinArticleMatches < 0 {
		return fmt.Errorf("min_article_matches must not be negative for %q", lp.Lang)
	}
	return nil
}

// Compile compiles the heading patterns. Each pattern must expose the article
// number as its first capture group.
func (lp *LocalePattern) Compile() error {
	compiled := &CompiledPattern{}

	heading, err := compileHeading(lp.ArticleHeading)
	if err != nil {
		return fmt.Errorf("compiling article_heading for %q: %w", lp.Lang, err)
	}
	compiled.Heading = heading

	if lp.ArticleFallback != "" {
		fallback, err := compileHeading(lp.ArticleFallback)
		if err != nil {
			return fmt.Errorf("compiling article_fallback for %q: %w", lp.Lang, err)
		}
		compiled.Fallback = fallback
	}

	lp.compiled = compiled
	return nil
}

func compileHeading(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q has no capture group for the article number", expr)
	}
	return re, nil
}

// IsCompiled reports whether Compile has succeeded.
func (lp *LocalePattern) IsCompiled() bool {
	return lp.compiled != nil
}

// Heading returns the compiled primary heading pattern.
func (lp *LocalePattern) Heading() *regexp.Regexp {
	if lp.compiled == nil {
		return nil
	}
	return lp.compiled.Heading
}

// Fallback returns the compiled fallback heading pattern, or nil.
func (lp *LocalePattern) Fallback() *regexp.Regexp {
	if lp.compiled == nil {
		return nil
	}
	return lp.compiled.Fallback
}

// MinMatches returns the effective minimum primary match count.
func (lp *LocalePattern) MinMatches() int {
	if lp.MinArticleMatches > 0 {
		return lp.MinArticleMatches
	}
	return DefaultMinArticleMatches
}

// MustCompile returns lp compiled, panicking on error. Intended for built-in
// patterns and tests.
func MustCompile(lp *LocalePattern) *LocalePattern {
	if err := lp.Validate(); err != nil {
		panic(err)
	}
	if err := lp.Compile(); err != nil {
		panic(err)
	}
	return lp
}
