// Package synth turns aligned bilingual segments into requirement records
// linked to evidence types and topic tags.
package synth

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownEvidenceType is returned when a rule table references a code
// outside the evidence vocabulary.
var ErrUnknownEvidenceType = errors.New("unknown evidence type")

// Outcome is the evidence linkage produced by a matching rule.
type Outcome struct {
	Primary    []string `yaml:"primary" json:"primary"`
	Supporting []string `yaml:"supporting" json:"supporting"`
}

// Predicate selects requirements by instrument and article. An empty list
// matches anything.
type Predicate struct {
	Instruments []string `yaml:"instruments,omitempty" json:"instruments,omitempty"`
	Articles    []int    `yaml:"articles,omitempty" json:"articles,omitempty"`
}

// Match reports whether the predicate holds for the given instrument and
// article.
func (p Predicate) Match(instrument string, article int) bool {
	if len(p.Instruments) > 0 && !slices.Contains(p.Instruments, instrument) {
		return false
	}
	if len(p.Articles) > 0 && !slices.Contains(p.Articles, article) {
		return false
	}
	return true
}

// Rule maps a predicate to an evidence outcome.
type Rule struct {
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	Predicate `yaml:",inline"`
	Outcome   `yaml:",inline"`
}

// TopicRule adds tags to every requirement its predicate matches.
type TopicRule struct {
	Predicate `yaml:",inline"`
	Tags      []string `yaml:"tags"`
}

// KeywordRule adds keywords for a language when the text contains any of the
// trigger substrings (case-insensitive).
type KeywordRule struct {
	Lang     string   `yaml:"lang"`
	AnyOf    []string `yaml:"any_of"`
	Keywords []string `yaml:"keywords"`
}

// RuleTable holds the data-driven mapping from legal references to evidence
// types, topic tags and keywords.
//
// Evidence rules are evaluated in order and the first match wins; Default
// applies when none matches. Topic rules are additive: every matching rule
// contributes its tags on top of BaseTopics.
type RuleTable struct {
	Rules      []Rule        `yaml:"rules"`
	Default    Outcome       `yaml:"default"`
	BaseTopics []string      `yaml:"base_topics"`
	Topics     []TopicRule   `yaml:"topics"`
	Keywords   []KeywordRule `yaml:"keywords"`
}

// Match returns the evidence outcome for a requirement.
func (t *RuleTable) Match(instrument string, article int) Outcome {
	for _, rule := range t.Rules {
		if rule.Predicate.Match(instrument, article) {
			return rule.Outcome
		}
	}
	return t.Default
}

// TopicTags returns the sorted set of topic tags for a requirement.
func (t *RuleTable) TopicTags(instrument string, article int) []string {
	tags := append([]string(nil), t.BaseTopics...)
	for _, rule := range t.Topics {
		if rule.Predicate.Match(instrument, article) {
			tags = append(tags, rule.Tags...)
		}
	}
	return sortedSet(tags)
}

// KeywordsFor returns the sorted set of keywords triggered by text in lang.
func (t *RuleTable) KeywordsFor(text, lang string) []string {
	lower := strings.ToLower(text)
	var keywords []string
	for _, rule := range t.Keywords {
		if !strings.EqualFold(rule.Lang, lang) {
			continue
		}
		for _, trigger := range rule.AnyOf {
			if strings.Contains(lower, strings.ToLower(trigger)) {
				keywords = append(keywords, rule.Keywords...)
				break
			}
		}
	}
	return sortedSet(keywords)
}

// Codes returns every evidence code referenced by the table, sorted.
func (t *RuleTable) Codes() []string {
	var codes []string
	add := func(o Outcome) {
		codes = append(codes, o.Primary...)
		codes = append(codes, o.Supporting...)
	}
	for _, rule := range t.Rules {
		add(rule.Outcome)
	}
	add(t.Default)
	return sortedSet(codes)
}

// Validate checks the table's structure and that every evidence code it
// references is in vocabulary.
func (t *RuleTable) Validate(vocabulary []string) error {
	if len(t.Default.Primary) == 0 {
		return errors.New("rule table has no default primary evidence type")
	}
	for i, rule := range t.Rules {
		if len(rule.Primary) == 0 {
			return fmt.Errorf("rule %d (%s) has no primary evidence type", i, rule.Name)
		}
	}

	known := make(map[string]bool, len(vocabulary))
	for _, code := range vocabulary {
		known[code] = true
	}
	var unknown []string
	for _, code := range t.Codes() {
		if !known[code] {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEvidenceType, strings.Join(unknown, ", "))
	}
	return nil
}

// LoadRuleTable reads a rule table from a YAML file.
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRuleTable(data)
}

// ParseRuleTable decodes a rule table from YAML.
func ParseRuleTable(data []byte) (*RuleTable, error) {
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	return &table, nil
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
