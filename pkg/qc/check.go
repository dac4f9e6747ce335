package qc

import (
	"fmt"
	"strings"

	"github.com/coolbeans/reqlib/pkg/synth"
)

// DefaultPreviewSize caps the messages listed per severity in a Report.
const DefaultPreviewSize = 50

// Mode selects how strictly the secondary language is checked.
type Mode string

const (
	// ModePrimaryCanonical requires primary text; missing secondary text is a
	// warning. Pairs with the left join policy.
	ModePrimaryCanonical Mode = "primary_canonical"

	// ModeBilingualStrict requires both languages. Pairs with the inner join
	// policy.
	ModeBilingualStrict Mode = "bilingual_strict"
)

// ParseMode validates a mode name. An empty name selects
// ModePrimaryCanonical; "en_canonical" is accepted as an alias.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(ModePrimaryCanonical), "en_canonical":
		return ModePrimaryCanonical, nil
	case string(ModeBilingualStrict):
		return ModeBilingualStrict, nil
	default:
		return "", fmt.Errorf("unknown qc mode %q (want primary_canonical or bilingual_strict)", name)
	}
}

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding codes.
const (
	CodeDuplicateReqID       = "duplicate_req_id"
	CodeUnknownEvidenceType  = "unknown_evidence_type"
	CodeMissingPrimaryText   = "missing_primary_text"
	CodeMissingSecondaryText = "missing_secondary_text"
	CodeUnmappedQuestion     = "unmapped_question"
	CodeUnknownRequiredType  = "unknown_required_evidence_type"
	CodeSkippedRefs          = "skipped_refs"
)

// Finding is one QC observation.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
}

// Input is everything a QC run inspects.
type Input struct {
	Version      string
	Mode         Mode
	Vocabulary   []string
	Requirements []synth.Requirement
	Mappings     []AuditMapping

	// Synthesis is optional; when present its skipped references are
	// reported as a warning.
	Synthesis *synth.Report

	PreviewSize int
}

// Report is the QC result. Findings are data: a report with errors is not a
// Go error.
type Report struct {
	Version             string         `json:"version"`
	QCMode              Mode           `json:"qc_mode"`
	RequirementsCount   int            `json:"requirements_count"`
	AuditQuestionsCount int            `json:"audit_questions_count"`
	ErrorsCount         int            `json:"errors_count"`
	WarningsCount       int            `json:"warnings_count"`
	ErrorsPreview       []string       `json:"errors_preview"`
	WarningsPreview     []string       `json:"warnings_preview"`
	CountsByCode        map[string]int `json:"counts_by_code"`
}

// HasErrors reports whether any error-level finding was recorded.
func (r Report) HasErrors() bool {
	return r.ErrorsCount > 0
}

// Check runs every QC rule over the input.
func Check(in Input) Report {
	mode := in.Mode
	if mode == "" {
		mode = ModePrimaryCanonical
	}
	preview := in.PreviewSize
	if preview <= 0 {
		preview = DefaultPreviewSize
	}

	report := Report{
		Version:             in.Version,
		QCMode:              mode,
		RequirementsCount:   len(in.Requirements),
		AuditQuestionsCount: len(in.Mappings),
		ErrorsPreview:       []string{},
		WarningsPreview:     []string{},
		CountsByCode:        make(map[string]int),
	}
	record := func(f Finding) {
		report.CountsByCode[f.Code]++
		switch f.Severity {
		case SeverityError:
			report.ErrorsCount++
			if len(report.ErrorsPreview) < preview {
				report.ErrorsPreview = append(report.ErrorsPreview, f.Message)
			}
		default:
			report.WarningsCount++
			if len(report.WarningsPreview) < preview {
				report.WarningsPreview = append(report.WarningsPreview, f.Message)
			}
		}
	}

	for _, f := range checkRequirements(in.Requirements, in.Vocabulary, mode) {
		record(f)
	}
	for _, f := range checkMappings(in.Mappings, in.Vocabulary) {
		record(f)
	}
	if in.Synthesis != nil && in.Synthesis.SkippedRefs > 0 {
		record(Finding{
			Severity: SeverityWarning,
			Code:     CodeSkippedRefs,
			Subject:  "synthesis",
			Message: fmt.Sprintf("%d segments with unparsable legal references skipped (e.g. %s)",
				in.Synthesis.SkippedRefs, strings.Join(in.Synthesis.SkippedRefSamples, ", ")),
		})
	}
	return report
}

func checkRequirements(requirements []synth.Requirement, vocabulary []string, mode Mode) []Finding {
	allowed := make(map[string]bool, len(vocabulary))
	for _, code := range vocabulary {
		allowed[code] = true
	}

	var findings []Finding
	ids := make(map[string]bool, len(requirements))
	for _, r := range requirements {
		if ids[r.ReqID] {
			findings = append(findings, Finding{SeverityError, CodeDuplicateReqID, r.ReqID, "Duplicate req_id: " + r.ReqID})
		}
		ids[r.ReqID] = true

		for _, code := range r.EvidenceTypes() {
			if !allowed[code] {
				findings = append(findings, Finding{SeverityError, CodeUnknownEvidenceType, r.ReqID,
					fmt.Sprintf("Unknown evidence type %s in %s", code, r.ReqID)})
			}
		}

		if strings.TrimSpace(r.TextPrimary) == "" {
			findings = append(findings, Finding{SeverityError, CodeMissingPrimaryText, r.ReqID, "Missing text_primary: " + r.ReqID})
		}
		if strings.TrimSpace(r.TextSecondary) == "" {
			severity := SeverityWarning
			if mode == ModeBilingualStrict {
				severity = SeverityError
			}
			findings = append(findings, Finding{severity, CodeMissingSecondaryText, r.ReqID, "Missing text_secondary: " + r.ReqID})
		}
	}
	return findings
}

func checkMappings(mappings []AuditMapping, vocabulary []string) []Finding {
	allowed := make(map[string]bool, len(vocabulary))
	for _, code := range vocabulary {
		allowed[code] = true
	}

	var findings []Finding
	for _, m := range mappings {
		id := m.QuestionID
		if id == "" {
			id = "<missing>"
		}
		if len(m.RelatedReqIDs) == 0 {
			findings = append(findings, Finding{SeverityError, CodeUnmappedQuestion, id, "Audit question unmapped: " + id})
		}
		for _, code := range m.RequiredEvidenceTypes {
			if !allowed[code] {
				findings = append(findings, Finding{SeverityWarning, CodeUnknownRequiredType, id,
					fmt.Sprintf("Audit question %s requires unknown evidence type %s", id, code)})
			}
		}
	}
	return findings
}
