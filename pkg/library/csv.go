package library

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/coolbeans/reqlib/pkg/synth"
)

// ListSeparator joins list-valued columns in the CSV export.
const ListSeparator = "|"

// RequirementColumns is the header of the requirements CSV.
var RequirementColumns = []string{
	"req_id",
	"instrument_code",
	"legal_ref",
	"article",
	"paragraph",
	"point",
	"text_primary",
	"text_secondary",
	"has_secondary",
	"lang_primary",
	"lang_secondary",
	"topic_tags",
	"primary_evidence_types",
	"supporting_evidence_types",
	"keywords_primary",
	"keywords_secondary",
	"eli",
	"source_hash_primary",
	"source_hash_secondary",
}

// WriteRequirementsCSV writes requirements as CSV with list columns joined by
// ListSeparator, replacing path atomically.
func WriteRequirementsCSV(path string, requirements []synth.Requirement) error {
	return WriteAtomic(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(RequirementColumns); err != nil {
			return err
		}
		for _, r := range requirements {
			if err := writer.Write(requirementRecord(r)); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

func requirementRecord(r synth.Requirement) []string {
	return []string{
		r.ReqID,
		r.InstrumentCode,
		r.LegalRef,
		strconv.Itoa(r.Article),
		strconv.Itoa(r.Paragraph),
		r.Point,
		r.TextPrimary,
		r.TextSecondary,
		strconv.FormatBool(r.HasSecondary),
		r.LangPrimary,
		r.LangSecondary,
		strings.Join(r.TopicTags, ListSeparator),
		strings.Join(r.PrimaryEvidenceTypes, ListSeparator),
		strings.Join(r.SupportingEvidenceTypes, ListSeparator),
		strings.Join(r.KeywordsPrimary, ListSeparator),
		strings.Join(r.KeywordsSecondary, ListSeparator),
		r.ELI,
		r.SourceHashPrimary,
		r.SourceHashSecondary,
	}
}
