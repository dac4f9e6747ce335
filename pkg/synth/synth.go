package synth

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/coolbeans/reqlib/pkg/align"
	"github.com/coolbeans/reqlib/pkg/citation"
	"github.com/coolbeans/reqlib/pkg/eurlex"
)

// DefaultSampleSize caps the reference samples in a Report.
const DefaultSampleSize = 20

// Requirement is one atomic, addressable compliance obligation.
type Requirement struct {
	ReqID          string `json:"req_id"`
	InstrumentCode string `json:"instrument_code"`
	LegalRef       string `json:"legal_ref"`
	Article        int    `json:"article"`
	Paragraph      int    `json:"paragraph"`
	Point          string `json:"point,omitempty"`

	TextPrimary   string `json:"text_primary"`
	TextSecondary string `json:"text_secondary"`
	HasSecondary  bool   `json:"has_secondary"`
	LangPrimary   string `json:"lang_primary"`
	LangSecondary string `json:"lang_secondary"`

	TopicTags               []string `json:"topic_tags"`
	PrimaryEvidenceTypes    []string `json:"primary_evidence_types"`
	SupportingEvidenceTypes []string `json:"supporting_evidence_types"`
	KeywordsPrimary         []string `json:"keywords_primary"`
	KeywordsSecondary       []string `json:"keywords_secondary"`

	ELI                 string `json:"eli,omitempty"`
	SourceHashPrimary   string `json:"source_hash_primary"`
	SourceHashSecondary string `json:"source_hash_secondary"`
}

// EvidenceTypes returns the primary followed by the supporting evidence
// codes.
func (r Requirement) EvidenceTypes() []string {
	out := make([]string, 0, len(r.PrimaryEvidenceTypes)+len(r.SupportingEvidenceTypes))
	out = append(out, r.PrimaryEvidenceTypes...)
	return append(out, r.SupportingEvidenceTypes...)
}

// HasTag reports whether the requirement carries the topic tag.
func (r Requirement) HasTag(tag string) bool {
	return slices.Contains(r.TopicTags, tag)
}

// Report summarizes a synthesis run.
type Report struct {
	Rows               int            `json:"rows"`
	Requirements       int            `json:"requirements"`
	SkippedRefs        int            `json:"skipped_refs"`
	SkippedRefSamples  []string       `json:"skipped_ref_samples"`
	DuplicateIDs       int            `json:"duplicate_ids"`
	DuplicateIDSamples []string       `json:"duplicate_id_samples"`
	WithoutSecondary   int            `json:"without_secondary"`
	ByInstrument       map[string]int `json:"by_instrument"`
	ELIUnresolved      []string       `json:"eli_unresolved,omitempty"`
}

// Synthesizer builds requirements from aligned rows.
type Synthesizer struct {
	PrimaryLang   string
	SecondaryLang string
	SampleSize    int

	// CELEX holds explicit CELEX numbers per instrument code; instruments
	// without an entry derive theirs from the code.
	CELEX map[string]string

	table *RuleTable
}

// NewSynthesizer validates table against the evidence vocabulary and creates
// a Synthesizer. A nil table selects BuiltinRuleTable.
func NewSynthesizer(table *RuleTable, vocabulary []string) (*Synthesizer, error) {
	if table == nil {
		table = BuiltinRuleTable()
	}
	if len(vocabulary) == 0 {
		return nil, errors.New("evidence vocabulary is empty")
	}
	if err := table.Validate(vocabulary); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	return &Synthesizer{
		PrimaryLang:   "en",
		SecondaryLang: "de",
		SampleSize:    DefaultSampleSize,
		table:         table,
	}, nil
}

// Table returns the rule table in use.
func (s *Synthesizer) Table() *RuleTable {
	return s.table
}

// ReqID formats the identifier of a requirement.
func ReqID(instrument string, ref citation.Ref) string {
	return fmt.Sprintf("%s|%d|%d|%s|001", instrument, ref.Article, ref.Paragraph, ref.PointOrDash())
}

// Synthesize converts rows into requirements in row order. Rows whose legal
// reference does not parse are skipped and counted; a repeated req_id keeps
// the first row.
func (s *Synthesizer) Synthesize(rows []align.BilingualSegment) ([]Requirement, Report) {
	sampleSize := s.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	report := Report{
		Rows:               len(rows),
		SkippedRefSamples:  []string{},
		DuplicateIDSamples: []string{},
		ByInstrument:       make(map[string]int),
	}
	elis := make(map[string]string)
	seen := make(map[string]bool, len(rows))
	requirements := make([]Requirement, 0, len(rows))

	for _, row := range rows {
		ref, err := citation.ParseRef(row.LegalRef)
		if err != nil {
			report.SkippedRefs++
			if len(report.SkippedRefSamples) < sampleSize {
				report.SkippedRefSamples = append(report.SkippedRefSamples, row.Key().String())
			}
			continue
		}

		id := ReqID(row.InstrumentCode, ref)
		if seen[id] {
			report.DuplicateIDs++
			if len(report.DuplicateIDSamples) < sampleSize {
				report.DuplicateIDSamples = append(report.DuplicateIDSamples, id)
			}
			continue
		}
		seen[id] = true

		eli, ok := elis[row.InstrumentCode]
		if !ok {
			eli = s.resolveELI(row.InstrumentCode)
			elis[row.InstrumentCode] = eli
			if eli == "" {
				report.ELIUnresolved = append(report.ELIUnresolved, row.InstrumentCode)
			}
		}

		requirement := s.build(row, ref, id, eli)
		requirements = append(requirements, requirement)
		report.ByInstrument[row.InstrumentCode]++
		if !requirement.HasSecondary {
			report.WithoutSecondary++
		}
	}

	sort.Strings(report.ELIUnresolved)
	report.Requirements = len(requirements)
	return requirements, report
}

func (s *Synthesizer) build(row align.BilingualSegment, ref citation.Ref, id, eli string) Requirement {
	outcome := s.table.Match(row.InstrumentCode, ref.Article)
	textPrimary := strings.TrimSpace(row.TextPrimary)
	textSecondary := strings.TrimSpace(row.TextSecondary)

	return Requirement{
		ReqID:          id,
		InstrumentCode: row.InstrumentCode,
		LegalRef:       ref.String(),
		Article:        ref.Article,
		Paragraph:      ref.Paragraph,
		Point:          ref.Point,

		TextPrimary:   textPrimary,
		TextSecondary: textSecondary,
		HasSecondary:  textSecondary != "",
		LangPrimary:   s.PrimaryLang,
		LangSecondary: s.SecondaryLang,

		TopicTags:               s.table.TopicTags(row.InstrumentCode, ref.Article),
		PrimaryEvidenceTypes:    append([]string{}, outcome.Primary...),
		SupportingEvidenceTypes: append([]string{}, outcome.Supporting...),
		KeywordsPrimary:         s.table.KeywordsFor(textPrimary, s.PrimaryLang),
		KeywordsSecondary:       s.table.KeywordsFor(textSecondary, s.SecondaryLang),

		ELI:                 eli,
		SourceHashPrimary:   row.SourceHashPrimary,
		SourceHashSecondary: row.SourceHashSecondary,
	}
}

func (s *Synthesizer) resolveELI(instrument string) string {
	_, eli, err := eurlex.Resolve(instrument, s.CELEX[instrument])
	if err != nil {
		return ""
	}
	return eli.String()
}
