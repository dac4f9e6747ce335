// Package qc maps audit questions onto the requirement library and checks
// the library for consistency.
package qc

import (
	"github.com/coolbeans/reqlib/pkg/config"
	"github.com/coolbeans/reqlib/pkg/synth"
)

// DefaultRelatedLimit caps the requirement ids linked to one question.
const DefaultRelatedLimit = 80

// AuditMapping links one audit question to the requirements answering it.
type AuditMapping struct {
	QuestionID            string            `json:"question_id"`
	Workflow              string            `json:"workflow"`
	Text                  map[string]string `json:"text"`
	RequiredEvidenceTypes []string          `json:"required_evidence_types"`
	Tags                  []string          `json:"tags"`
	RelatedReqIDs         []string          `json:"related_req_ids"`
	RelatedTotal          int               `json:"related_total"`
}

// MapAuditQuestions links each question to the requirements carrying any of
// its workflow's topic tags, in library order, keeping at most limit ids.
func MapAuditQuestions(questions *config.AuditQuestions, requirements []synth.Requirement, limit int) []AuditMapping {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	mappings := make([]AuditMapping, 0, len(questions.Questions))
	for _, q := range questions.Questions {
		tags := questions.TagsFor(q.Workflow)

		related := []string{}
		total := 0
		for _, r := range requirements {
			if !hasAnyTag(r, tags) {
				continue
			}
			total++
			if len(related) < limit {
				related = append(related, r.ReqID)
			}
		}

		text := q.Text
		if text == nil {
			text = map[string]string{}
		}
		required := q.RequiredEvidenceTypes
		if required == nil {
			required = []string{}
		}
		mappings = append(mappings, AuditMapping{
			QuestionID:            q.ID,
			Workflow:              q.Workflow,
			Text:                  text,
			RequiredEvidenceTypes: required,
			Tags:                  append([]string{}, tags...),
			RelatedReqIDs:         related,
			RelatedTotal:          total,
		})
	}
	return mappings
}

func hasAnyTag(r synth.Requirement, tags []string) bool {
	for _, tag := range tags {
		if r.HasTag(tag) {
			return true
		}
	}
	return false
}
