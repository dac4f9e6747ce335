// Package citation parses, formats and normalizes the hierarchical legal
// references ("Art. 19(2)(a)") that identify segments and requirements.
package citation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidRef is returned when a reference does not match the strict
// Art. <int>(<int>)[(<letter>)] grammar.
var ErrInvalidRef = errors.New("invalid legal reference")

// CanonicalHeading is the abbreviation every locale heading word folds to.
const CanonicalHeading = "Art."

// DefaultHeadingWords are folded when no locale registry is available.
var DefaultHeadingWords = []string{"Article", "Artikel", "Art"}

var (
	strictRefPattern  = regexp.MustCompile(`^Art\.?\s*(\d+)\((\d+)\)(?:\(([a-z])\))?$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	openParenPattern  = regexp.MustCompile(`\s*\(\s*`)
	closeParenPattern = regexp.MustCompile(`\s*\)`)
	upperPointPattern = regexp.MustCompile(`\(([A-Z])\)`)
)

// Ref is a parsed article/paragraph/point reference.
type Ref struct {
	Article   int    `json:"article"`
	Paragraph int    `json:"paragraph"`
	Point     string `json:"point,omitempty"`
}

// ParseRef parses a reference against the strict grammar.
func ParseRef(s string) (Ref, error) {
	m := strictRefPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}

	article, err := strconv.Atoi(m[1])
	if err != nil {
		return Ref{}, fmt.Errorf("%w: article number %q", ErrInvalidRef, m[1])
	}
	paragraph, err := strconv.Atoi(m[2])
	if err != nil {
		return Ref{}, fmt.Errorf("%w: paragraph number %q", ErrInvalidRef, m[2])
	}

	return Ref{Article: article, Paragraph: paragraph, Point: m[3]}, nil
}

// String formats the reference in canonical form.
func (r Ref) String() string {
	return FormatRef(r.Article, r.Paragraph, r.Point)
}

// PointOrDash returns the point letter, or "-" when the reference has none.
func (r Ref) PointOrDash() string {
	if r.Point == "" {
		return "-"
	}
	return r.Point
}

// Less orders references by article, paragraph, then point. A reference
// without a point sorts before its points.
func (r Ref) Less(other Ref) bool {
	if r.Article != other.Article {
		return r.Article < other.Article
	}
	if r.Paragraph != other.Paragraph {
		return r.Paragraph < other.Paragraph
	}
	return r.Point < other.Point
}

// FormatRef builds "Art. N(P)" or "Art. N(P)(x)".
func FormatRef(article, paragraph int, point string) string {
	if point == "" {
		return fmt.Sprintf("%s %d(%d)", CanonicalHeading, article, paragraph)
	}
	return fmt.Sprintf("%s %d(%d)(%s)", CanonicalHeading, article, paragraph, point)
}

// RefNormalizer folds cosmetic differences out of legal references so that
// the same provision cited in two languages yields the same string.
type RefNormalizer struct {
	heading *regexp.Regexp
}

// NewRefNormalizer creates a normalizer folding the given heading words.
// "Art" is always folded.
func NewRefNormalizer(headingWords []string) *RefNormalizer {
	seen := map[string]bool{}
	var alternatives []string
	for _, w := range append(append([]string{}, headingWords...), "Art") {
		w = strings.TrimSuffix(strings.TrimSpace(w), ".")
		key := strings.ToLower(w)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		alternatives = append(alternatives, regexp.QuoteMeta(w))
	}
	// Leftmost-first alternation: longer words must be tried first.
	sort.SliceStable(alternatives, func(i, j int) bool {
		return len(alternatives[i]) > len(alternatives[j])
	})

	return &RefNormalizer{
		heading: regexp.MustCompile(`(?i)^(?:` + strings.Join(alternatives, "|") + `)\.?\s*`),
	}
}

// Normalize returns the canonical form of s. It is idempotent.
func (n *RefNormalizer) Normalize(s string) string {
	out := strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))

	if loc := n.heading.FindStringIndex(out); loc != nil {
		rest := out[loc[1]:]
		if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			out = CanonicalHeading + " " + rest
		}
	}

	out = openParenPattern.ReplaceAllString(out, "(")
	out = closeParenPattern.ReplaceAllString(out, ")")
	out = upperPointPattern.ReplaceAllStringFunc(out, strings.ToLower)
	return out
}

var defaultNormalizer = NewRefNormalizer(DefaultHeadingWords)

// NormalizeRef normalizes s using DefaultHeadingWords.
func NormalizeRef(s string) string {
	return defaultNormalizer.Normalize(s)
}
