package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strategy names recorded in ParagraphResult.
const (
	StrategyNumbered         = "numbered"
	StrategyBlankLines       = "blank_lines"
	StrategyCapitalizedLines = "capitalized_lines"
	StrategySingle           = "single"
	StrategyEmpty            = "empty"
)

var (
	paragraphMarkerPattern = regexp.MustCompile(`(?m)^\s*(?:\(\s*(\d+)\s*\)|(\d+)\.)\s+`)
	markerLinePattern      = regexp.MustCompile(`^\s*(?:\(\s*\d+\s*\)|\d+\.)(?:\s+|$)`)
	blankLinePattern       = regexp.MustCompile(`\n\s*\n+`)
)

// Paragraph is one paragraph of an article. Label is the paragraph number as
// printed, or a synthetic 1-based number when the numbering was not recovered.
type Paragraph struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ParagraphResult is the outcome of splitting one article.
type ParagraphResult struct {
	Paragraphs []Paragraph `json:"paragraphs"`
	Strategy   string      `json:"strategy"`

	// UnderExpected is set when the article has a configured minimum that no
	// strategy reached.
	UnderExpected bool `json:"under_expected,omitempty"`
}

// Strategy splits an article body into paragraphs. ok reports whether the
// result is trustworthy enough to use.
type Strategy interface {
	Name() string
	Split(body string) (paragraphs []Paragraph, ok bool)
}

// NumberedStrategy splits on "(N)" or "N." markers at line start. A single
// marker is more likely a stray number than real numbering, so at least two
// are required.
type NumberedStrategy struct{}

func (NumberedStrategy) Name() string { return StrategyNumbered }

func (NumberedStrategy) Split(body string) ([]Paragraph, bool) {
	matches := paragraphMarkerPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) < 2 {
		return nil, false
	}

	paragraphs := make([]Paragraph, 0, len(matches))
	for i, m := range matches {
		var label string
		if m[2] >= 0 {
			label = body[m[2]:m[3]]
		} else {
			label = body[m[4]:m[5]]
		}
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		paragraphs = append(paragraphs, Paragraph{
			Label: label,
			Text:  strings.TrimSpace(body[m[0]:end]),
		})
	}
	return paragraphs, true
}

// BlankLineStrategy splits on empty lines.
type BlankLineStrategy struct{}

func (BlankLineStrategy) Name() string { return StrategyBlankLines }

func (BlankLineStrategy) Split(body string) ([]Paragraph, bool) {
	chunks := nonEmpty(blankLinePattern.Split(body, -1))
	return labelSequentially(chunks), len(chunks) >= 2
}

// CapitalizedLineStrategy starts a new paragraph at every line beginning with
// an uppercase letter. It recovers structure from PDFs that lost both
// numbering and blank lines.
type CapitalizedLineStrategy struct{}

func (CapitalizedLineStrategy) Name() string { return StrategyCapitalizedLines }

func (CapitalizedLineStrategy) Split(body string) ([]Paragraph, bool) {
	lines := strings.Split(body, "\n")

	var chunks []string
	start := 0
	for i := 1; i < len(lines); i++ {
		first, _ := utf8.DecodeRuneInString(lines[i])
		if unicode.IsUpper(first) {
			chunks = append(chunks, strings.Join(lines[start:i], "\n"))
			start = i
		}
	}
	chunks = nonEmpty(append(chunks, strings.Join(lines[start:], "\n")))
	return labelSequentially(chunks), len(chunks) >= 2
}

// DefaultStrategies returns the strategy chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{NumberedStrategy{}, BlankLineStrategy{}, CapitalizedLineStrategy{}}
}

// ParagraphSegmenter splits article blocks into paragraphs by trying a chain
// of strategies.
type ParagraphSegmenter struct {
	// ExpectedMin maps an article number to the minimum paragraph count the
	// instrument is known to have.
	ExpectedMin map[int]int

	Strategies []Strategy
}

// NewParagraphSegmenter creates a segmenter using DefaultStrategies.
func NewParagraphSegmenter(expectedMin map[int]int) *ParagraphSegmenter {
	return &ParagraphSegmenter{
		ExpectedMin: expectedMin,
		Strategies:  DefaultStrategies(),
	}
}

// Split drops the heading line and the article title and applies the
// strategy chain. The first strategy that succeeds and meets the article's expected minimum wins; if none meets it,
// the first successful result is kept. A non-empty body nothing could split
// becomes a single paragraph "1".
func (s *ParagraphSegmenter) Split(block string, article int) ParagraphResult {
	body := articleBody(block)
	if body == "" {
		return ParagraphResult{Strategy: StrategyEmpty}
	}

	strategies := s.Strategies
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	expected := s.ExpectedMin[article]

	var candidate *ParagraphResult
	for _, strategy := range strategies {
		paragraphs, ok := strategy.Split(body)
		if !ok {
			continue
		}
		result := ParagraphResult{Paragraphs: paragraphs, Strategy: strategy.Name()}
		if len(paragraphs) >= expected {
			return result
		}
		if candidate == nil {
			candidate = &result
		}
	}

	if candidate != nil {
		candidate.UnderExpected = true
		return *candidate
	}

	return ParagraphResult{
		Paragraphs:    []Paragraph{{Label: "1", Text: body}},
		Strategy:      StrategySingle,
		UnderExpected: expected > 1,
	}
}

// articleBody returns the block without its heading line and title. When a
// paragraph marker line exists everything before it is title. Otherwise
// leading title lines are recognised by shape: short, unpunctuated, starting
// upper case and followed by a line that does not continue a sentence.
func articleBody(block string) string {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]

	for i, line := range lines {
		if markerLinePattern.MatchString(line) {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	lines = lines[titleLines(lines):]
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// maxTitleRunes bounds a line that may still be a title.
const maxTitleRunes = 150

// titleLines counts the leading title lines of a body without paragraph
// markers. At least one body line always remains.
func titleLines(lines []string) int {
	n := 0
	for n < len(lines)-1 {
		line := strings.TrimSpace(lines[n])
		if !titleLike(line, n == 0) {
			break
		}
		n++
	}
	if n == 0 || !opensParagraph(strings.TrimSpace(lines[n])) {
		return 0
	}
	return n
}

func titleLike(line string, first bool) bool {
	if line == "" || utf8.RuneCountInString(line) > maxTitleRunes {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(".;:,!?", last) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line)
	return !first || unicode.IsUpper(r)
}

// opensParagraph reports whether a line starts a new sentence rather than
// continuing a wrapped one.
func opensParagraph(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	return unicode.IsUpper(r) || unicode.IsDigit(r) || strings.ContainsRune("(\"'“„«‘", r)
}

func nonEmpty(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func labelSequentially(chunks []string) []Paragraph {
	paragraphs := make([]Paragraph, len(chunks))
	for i, chunk := range chunks {
		paragraphs[i] = Paragraph{Label: strconv.Itoa(i + 1), Text: chunk}
	}
	return paragraphs
}
