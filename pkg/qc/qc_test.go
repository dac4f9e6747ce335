package qc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/reqlib/pkg/config"
	"github.com/coolbeans/reqlib/pkg/synth"
)

func requirement(id, primary, secondary string, tags ...string) synth.Requirement {
	return synth.Requirement{
		ReqID:                   id,
		TextPrimary:             primary,
		TextSecondary:           secondary,
		TopicTags:               tags,
		PrimaryEvidenceTypes:    []string{"POLICY"},
		SupportingEvidenceTypes: []string{"PROCEDURE_RUNBOOK"},
	}
}

func questionnaire() *config.AuditQuestions {
	return &config.AuditQuestions{
		Workflows:   config.DefaultWorkflowTags(),
		DefaultTags: config.DefaultFallbackTags(),
		Questions: []config.AuditQuestion{
			{ID: "Q-ROI", Workflow: "ROI", Text: map[string]string{"en": "Register?"}, RequiredEvidenceTypes: []string{"REGISTER_INVENTORY"}},
			{ID: "Q-INC", Workflow: "INCIDENT"},
		},
	}
}

func TestMapAuditQuestions(t *testing.T) {
	reqs := []synth.Requirement{
		requirement("A", "a", "", "DORA", "INCIDENT"),
		requirement("B", "b", "", "DORA", "RoI", "TPRM"),
		requirement("C", "c", "", "DORA", "TPRM"),
		requirement("D", "d", "", "DORA"),
	}

	mappings := MapAuditQuestions(questionnaire(), reqs, 0)
	require.Len(t, mappings, 2)

	assert.Equal(t, "Q-ROI", mappings[0].QuestionID)
	assert.Equal(t, []string{"B", "C"}, mappings[0].RelatedReqIDs)
	assert.Equal(t, []string{"RoI", "TPRM"}, mappings[0].Tags)
	assert.Equal(t, map[string]string{"en": "Register?"}, mappings[0].Text)

	assert.Equal(t, []string{"A"}, mappings[1].RelatedReqIDs)
	assert.Equal(t, map[string]string{}, mappings[1].Text)
	assert.Equal(t, []string{}, mappings[1].RequiredEvidenceTypes)
}

func TestMapAuditQuestionsCapsRelatedIDs(t *testing.T) {
	var reqs []synth.Requirement
	for i := 0; i < 100; i++ {
		reqs = append(reqs, requirement(fmt.Sprintf("R%03d", i), "t", "", "INCIDENT"))
	}

	mappings := MapAuditQuestions(questionnaire(), reqs, DefaultRelatedLimit)
	assert.Len(t, mappings[1].RelatedReqIDs, 80)
	assert.Equal(t, 100, mappings[1].RelatedTotal)
	assert.Equal(t, "R000", mappings[1].RelatedReqIDs[0])
	assert.Empty(t, mappings[0].RelatedReqIDs)
}

func TestCheckPrimaryCanonical(t *testing.T) {
	reqs := []synth.Requirement{
		requirement("A", "text", "Text"),
		requirement("A", "text", ""),
		requirement("B", "  ", "Text"),
	}
	reqs[2].SupportingEvidenceTypes = []string{"MAGIC"}

	mappings := MapAuditQuestions(questionnaire(), reqs, 0)
	report := Check(Input{
		Version:      "v0_1",
		Vocabulary:   []string{"POLICY", "PROCEDURE_RUNBOOK", "INCIDENT_RECORD"},
		Requirements: reqs,
		Mappings:     mappings,
		Synthesis:    &synth.Report{SkippedRefs: 2, SkippedRefSamples: []string{"X|Art. 114", "X|Annex"}},
	})

	assert.Equal(t, ModePrimaryCanonical, report.QCMode)
	assert.Equal(t, 3, report.RequirementsCount)
	assert.Equal(t, 2, report.AuditQuestionsCount)
	assert.True(t, report.HasErrors())

	assert.Equal(t, 1, report.CountsByCode[CodeDuplicateReqID])
	assert.Equal(t, 1, report.CountsByCode[CodeUnknownEvidenceType])
	assert.Equal(t, 1, report.CountsByCode[CodeMissingPrimaryText])
	assert.Equal(t, 1, report.CountsByCode[CodeMissingSecondaryText])
	assert.Equal(t, 2, report.CountsByCode[CodeUnmappedQuestion])
	assert.Equal(t, 1, report.CountsByCode[CodeUnknownRequiredType])
	assert.Equal(t, 1, report.CountsByCode[CodeSkippedRefs])

	assert.Equal(t, 5, report.ErrorsCount)
	assert.Equal(t, 3, report.WarningsCount)
	assert.Contains(t, report.ErrorsPreview, "Duplicate req_id: A")
	assert.Contains(t, report.ErrorsPreview, "Unknown evidence type MAGIC in B")
	assert.Contains(t, report.ErrorsPreview, "Audit question unmapped: Q-INC")
	assert.Contains(t, report.WarningsPreview, "Missing text_secondary: A")
}

func TestCheckBilingualStrict(t *testing.T) {
	reqs := []synth.Requirement{requirement("A", "text", "", "INCIDENT")}

	lenient := Check(Input{Mode: ModePrimaryCanonical, Vocabulary: []string{"POLICY", "PROCEDURE_RUNBOOK"}, Requirements: reqs})
	assert.False(t, lenient.HasErrors())
	assert.Equal(t, 1, lenient.WarningsCount)

	strict := Check(Input{Mode: ModeBilingualStrict, Vocabulary: []string{"POLICY", "PROCEDURE_RUNBOOK"}, Requirements: reqs})
	assert.True(t, strict.HasErrors())
	assert.Equal(t, []string{"Missing text_secondary: A"}, strict.ErrorsPreview)
}

func TestCheckPreviewCap(t *testing.T) {
	var reqs []synth.Requirement
	for i := 0; i < 70; i++ {
		reqs = append(reqs, requirement(fmt.Sprintf("R%d", i), "", "x"))
	}

	report := Check(Input{Vocabulary: []string{"POLICY", "PROCEDURE_RUNBOOK"}, Requirements: reqs})
	assert.Equal(t, 70, report.ErrorsCount)
	assert.Len(t, report.ErrorsPreview, DefaultPreviewSize)
	assert.Equal(t, []string{}, report.WarningsPreview)
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"":                  ModePrimaryCanonical,
		"en_canonical":      ModePrimaryCanonical,
		"primary_canonical": ModePrimaryCanonical,
		"BILINGUAL_STRICT":  ModeBilingualStrict,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("loose")
	assert.Error(t, err)
}
