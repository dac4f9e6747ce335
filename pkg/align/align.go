// Package align joins the segment streams of two languages on a normalized
// (instrument, legal reference) key.
package align

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/coolbeans/reqlib/pkg/citation"
	"github.com/coolbeans/reqlib/pkg/extract"
)

// DefaultSampleSize caps the key samples in a Report.
const DefaultSampleSize = 20

// Policy selects which keys survive the join.
type Policy string

const (
	// PolicyLeft keeps every primary-language key; a missing secondary
	// counterpart is recorded as a gap.
	PolicyLeft Policy = "left"

	// PolicyInner keeps only keys present in both languages.
	PolicyInner Policy = "inner"
)

// ParsePolicy validates a policy name. An empty name selects PolicyLeft.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyLeft:
		return PolicyLeft, nil
	case PolicyInner:
		return PolicyInner, nil
	default:
		return "", fmt.Errorf("unknown join policy %q (want left or inner)", name)
	}
}

// Key identifies the same provision across languages.
type Key struct {
	Instrument string `json:"instrument_code"`
	Ref        string `json:"legal_ref"`
}

// String renders the key as "INSTRUMENT|ref".
func (k Key) String() string {
	return k.Instrument + "|" + k.Ref
}

// BilingualSegment is one primary-language segment joined with at most one
// secondary-language segment.
type BilingualSegment struct {
	InstrumentCode      string `json:"instrument_code"`
	LegalRef            string `json:"legal_ref"`
	TextPrimary         string `json:"text_primary"`
	TextSecondary       string `json:"text_secondary"`
	HasSecondary        bool   `json:"has_secondary"`
	SourceHashPrimary   string `json:"source_hash_primary"`
	SourceHashSecondary string `json:"source_hash_secondary"`
}

// Key returns the alignment key of the row.
func (b BilingualSegment) Key() Key {
	return Key{Instrument: b.InstrumentCode, Ref: b.LegalRef}
}

// Report summarizes an alignment run. It is the main signal for detecting
// segmentation drift between the two language pipelines.
type Report struct {
	PrimaryLang   string `json:"primary_lang"`
	SecondaryLang string `json:"secondary_lang"`
	Policy        Policy `json:"policy"`

	PrimaryRecords   int `json:"primary_records"`
	SecondaryRecords int `json:"secondary_records"`
	PrimaryKeys      int `json:"primary_keys"`
	SecondaryKeys    int `json:"secondary_keys"`
	CommonKeys       int `json:"common_keys"`
	Rows             int `json:"rows"`
	MissingSecondary int `json:"missing_secondary"`

	OnlyPrimary         int      `json:"only_primary"`
	OnlySecondary       int      `json:"only_secondary"`
	OnlyPrimarySample   []string `json:"only_primary_sample"`
	OnlySecondarySample []string `json:"only_secondary_sample"`

	// Keyed by language tag.
	DuplicateKeys       map[string]int      `json:"duplicate_keys"`
	DuplicateRecords    map[string]int      `json:"duplicate_records"`
	DuplicateKeySamples map[string][]string `json:"duplicate_key_samples"`
}

// Result is the output of Align.
type Result struct {
	Rows   []BilingualSegment
	Report Report
}

// Aligner joins a primary and a secondary segment stream.
type Aligner struct {
	Primary    string
	Secondary  string
	Policy     Policy
	SampleSize int

	normalizer *citation.RefNormalizer
}

// NewAligner creates an aligner folding the given heading words ("Article",
// "Artikel", ...) in legal references. Nil headingWords selects
// citation.DefaultHeadingWords.
func NewAligner(primary, secondary string, policy Policy, headingWords []string) *Aligner {
	if headingWords == nil {
		headingWords = citation.DefaultHeadingWords
	}
	if policy == "" {
		policy = PolicyLeft
	}
	return &Aligner{
		Primary:    primary,
		Secondary:  secondary,
		Policy:     policy,
		SampleSize: DefaultSampleSize,
		normalizer: citation.NewRefNormalizer(headingWords),
	}
}

// NormalizeKey builds the alignment key of a segment.
func (a *Aligner) NormalizeKey(segment extract.Segment) Key {
	return Key{
		Instrument: strings.TrimSpace(segment.InstrumentCode),
		Ref:        a.normalizer.Normalize(segment.LegalRef),
	}
}

// Align joins the two streams. Same-key duplicates within one language are
// resolved deterministically (see better), never by input order.
func (a *Aligner) Align(primary, secondary []extract.Segment) Result {
	sampleSize := a.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	primaryIndex := a.index(primary)
	secondaryIndex := a.index(secondary)

	report := Report{
		PrimaryLang:         a.Primary,
		SecondaryLang:       a.Secondary,
		Policy:              a.Policy,
		PrimaryRecords:      len(primary),
		SecondaryRecords:    len(secondary),
		PrimaryKeys:         len(primaryIndex),
		SecondaryKeys:       len(secondaryIndex),
		DuplicateKeys:       make(map[string]int),
		DuplicateRecords:    make(map[string]int),
		DuplicateKeySamples: make(map[string][]string),
	}
	a.countDuplicates(&report, a.Primary, primaryIndex, sampleSize)
	a.countDuplicates(&report, a.Secondary, secondaryIndex, sampleSize)

	var onlyPrimary, onlySecondary []Key
	for key := range secondaryIndex {
		if _, ok := primaryIndex[key]; !ok {
			onlySecondary = append(onlySecondary, key)
		}
	}

	rows := make([]BilingualSegment, 0, len(primaryIndex))
	for key, records := range primaryIndex {
		chosen := choose(records)
		row := BilingualSegment{
			InstrumentCode:    key.Instrument,
			LegalRef:          key.Ref,
			TextPrimary:       chosen.Text,
			SourceHashPrimary: chosen.SourceHash,
		}

		if matches, ok := secondaryIndex[key]; ok {
			counterpart := choose(matches)
			row.TextSecondary = counterpart.Text
			row.SourceHashSecondary = counterpart.SourceHash
			row.HasSecondary = true
			report.CommonKeys++
		} else {
			onlyPrimary = append(onlyPrimary, key)
			if a.Policy == PolicyInner {
				continue
			}
			report.MissingSecondary++
		}
		rows = append(rows, row)
	}

	SortRows(rows)
	report.Rows = len(rows)
	report.OnlyPrimary = len(onlyPrimary)
	report.OnlySecondary = len(onlySecondary)
	report.OnlyPrimarySample = sampleKeys(onlyPrimary, sampleSize)
	report.OnlySecondarySample = sampleKeys(onlySecondary, sampleSize)

	return Result{Rows: rows, Report: report}
}

func (a *Aligner) index(segments []extract.Segment) map[Key][]extract.Segment {
	index := make(map[Key][]extract.Segment, len(segments))
	for _, segment := range segments {
		key := a.NormalizeKey(segment)
		index[key] = append(index[key], segment)
	}
	return index
}

func (a *Aligner) countDuplicates(report *Report, lang string, index map[Key][]extract.Segment, sampleSize int) {
	var duplicated []Key
	extra := 0
	for key, records := range index {
		if len(records) > 1 {
			duplicated = append(duplicated, key)
			extra += len(records) - 1
		}
	}
	report.DuplicateKeys[lang] += len(duplicated)
	report.DuplicateRecords[lang] += extra
	report.DuplicateKeySamples[lang] = append(report.DuplicateKeySamples[lang], sampleKeys(duplicated, sampleSize)...)
}

// choose picks one record among same-key duplicates.
func choose(records []extract.Segment) extract.Segment {
	chosen := records[0]
	for _, candidate := range records[1:] {
		if better(candidate, chosen) {
			chosen = candidate
		}
	}
	return chosen
}

// better reports whether a should be preferred over b: non-empty text first,
// then longer text, then the smaller text digest, then the smaller source
// hash. The order is total for distinct records, so the choice does not
// depend on input order.
func better(a, b extract.Segment) bool {
	aText, bText := strings.TrimSpace(a.Text), strings.TrimSpace(b.Text)
	if (aText != "") != (bText != "") {
		return aText != ""
	}
	if la, lb := utf8.RuneCountInString(aText), utf8.RuneCountInString(bText); la != lb {
		return la > lb
	}
	if da, db := textDigest(a.Text), textDigest(b.Text); da != db {
		return da < db
	}
	return a.SourceHash < b.SourceHash
}

func textDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SortRows orders rows by instrument, then by article, paragraph and point
// for references in the strict grammar, then by reference text.
func SortRows(rows []BilingualSegment) {
	sort.SliceStable(rows, func(i, j int) bool {
		return lessKey(rows[i].Key(), rows[j].Key())
	})
}

func lessKey(a, b Key) bool {
	if a.Instrument != b.Instrument {
		return a.Instrument < b.Instrument
	}
	refA, errA := citation.ParseRef(a.Ref)
	refB, errB := citation.ParseRef(b.Ref)
	switch {
	case errA == nil && errB == nil:
		if refA != refB {
			return refA.Less(refB)
		}
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a.Ref < b.Ref
}

func sampleKeys(keys []Key, limit int) []string {
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}
