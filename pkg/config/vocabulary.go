package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/reqlib/pkg/synth"
)

// EvidenceType is one entry of the evidence vocabulary.
type EvidenceType struct {
	Code        string `yaml:"code" validate:"required"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Vocabulary is the closed set of evidence types.
type Vocabulary struct {
	EvidenceTypes []EvidenceType `yaml:"evidence_types" validate:"required,min=1,dive"`
}

// Codes returns the evidence codes in file order.
func (v *Vocabulary) Codes() []string {
	codes := make([]string, len(v.EvidenceTypes))
	for i, e := range v.EvidenceTypes {
		codes[i] = e.Code
	}
	return codes
}

// LoadVocabulary reads an evidence vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := readInput(path, "evidence vocabulary")
	if err != nil {
		return nil, err
	}

	var vocabulary Vocabulary
	if err := yaml.Unmarshal(data, &vocabulary); err != nil {
		return nil, fmt.Errorf("failed to parse evidence vocabulary %s: %w", path, err)
	}
	if err := validate.Struct(&vocabulary); err != nil {
		return nil, fmt.Errorf("invalid evidence vocabulary %s: %w", path, err)
	}

	seen := make(map[string]bool, len(vocabulary.EvidenceTypes))
	for _, e := range vocabulary.EvidenceTypes {
		if seen[e.Code] {
			return nil, fmt.Errorf("duplicate evidence type %s in %s", e.Code, path)
		}
		if strings.TrimSpace(e.Code) != e.Code {
			return nil, fmt.Errorf("evidence type %q in %s has surrounding whitespace", e.Code, path)
		}
		seen[e.Code] = true
	}
	return &vocabulary, nil
}

// LoadRules reads a rule table. An empty path selects the built-in table.
func LoadRules(path string) (*synth.RuleTable, error) {
	if path == "" {
		return synth.BuiltinRuleTable(), nil
	}
	data, err := readInput(path, "rule table")
	if err != nil {
		return nil, err
	}
	return synth.ParseRuleTable(data)
}
