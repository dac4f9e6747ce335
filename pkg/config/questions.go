package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AuditQuestion is one question of the audit questionnaire.
type AuditQuestion struct {
	ID                    string            `yaml:"id" json:"question_id" validate:"required"`
	Workflow              string            `yaml:"workflow" json:"workflow" validate:"required"`
	Text                  map[string]string `yaml:"text" json:"text"`
	RequiredEvidenceTypes []string          `yaml:"required_evidence_types" json:"required_evidence_types"`
}

// UnmarshalYAML accepts per-language text both as a "text" map and as
// "text_<lang>" keys.
func (q *AuditQuestion) UnmarshalYAML(node *yaml.Node) error {
	type plain AuditQuestion
	var raw struct {
		plain `yaml:",inline"`
		Extra map[string]interface{} `yaml:",inline"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*q = AuditQuestion(raw.plain)
	for key, value := range raw.Extra {
		lang, ok := strings.CutPrefix(key, "text_")
		if !ok || lang == "" {
			continue
		}
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("question %s: %s must be a string", q.ID, key)
		}
		if q.Text == nil {
			q.Text = make(map[string]string)
		}
		if _, exists := q.Text[lang]; !exists {
			q.Text[lang] = text
		}
	}
	return nil
}

// AuditQuestions is the audit questionnaire file. Workflows maps a workflow
// name to the topic tags whose requirements answer it; workflows without an
// entry use DefaultTags.
type AuditQuestions struct {
	Workflows   map[string][]string `yaml:"workflows"`
	DefaultTags []string            `yaml:"default_tags"`
	Questions   []AuditQuestion     `yaml:"audit_questions" validate:"dive"`
}

// DefaultWorkflowTags maps the register-of-information and third-party
// workflows to their tags.
func DefaultWorkflowTags() map[string][]string {
	return map[string][]string{
		"ROI":  {"RoI", "TPRM"},
		"TPRM": {"RoI", "TPRM"},
	}
}

// DefaultFallbackTags applies to workflows without a mapping.
func DefaultFallbackTags() []string {
	return []string{"INCIDENT"}
}

// TagsFor returns the topic tags that answer a workflow.
func (a *AuditQuestions) TagsFor(workflow string) []string {
	if tags, ok := a.Workflows[workflow]; ok {
		return tags
	}
	return a.DefaultTags
}

// LoadAuditQuestions reads an audit questionnaire. An empty path yields an
// empty questionnaire.
func LoadAuditQuestions(path string) (*AuditQuestions, error) {
	questions := &AuditQuestions{}
	if path != "" {
		data, err := readInput(path, "audit questions")
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, questions); err != nil {
			return nil, fmt.Errorf("failed to parse audit questions %s: %w", path, err)
		}
		if err := validate.Struct(questions); err != nil {
			return nil, fmt.Errorf("invalid audit questions %s: %w", path, err)
		}
	}

	if questions.Workflows == nil {
		questions.Workflows = DefaultWorkflowTags()
	}
	if len(questions.DefaultTags) == 0 {
		questions.DefaultTags = DefaultFallbackTags()
	}

	seen := make(map[string]bool, len(questions.Questions))
	for _, q := range questions.Questions {
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate audit question id %s in %s", q.ID, path)
		}
		seen[q.ID] = true
	}
	return questions, nil
}
