package synth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/reqlib/pkg/align"
	"github.com/coolbeans/reqlib/pkg/citation"
)

func newBuiltin(t *testing.T) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(nil, BuiltinVocabulary())
	require.NoError(t, err)
	return s
}

func TestBuiltinEvidenceMapping(t *testing.T) {
	table := BuiltinRuleTable()

	tests := []struct {
		name       string
		instrument string
		article    int
		primary    []string
		supporting []string
	}{
		{"register standard wins over article", "EU_2024_2956", 30, []string{"REGISTER_INVENTORY"}, []string{"PROCEDURE_RUNBOOK"}},
		{"reporting standard", "EU_2025_302", 1, []string{"PROCEDURE_RUNBOOK", "INCIDENT_RECORD"}, []string{"MONITORING_REVIEW", "POSTMORTEM"}},
		{"classification standard", "EU_2024_1772", 19, []string{"POLICY", "PROCEDURE_RUNBOOK"}, []string{"INCIDENT_RECORD", "TRAINING_ATTESTATION"}},
		{"contractual provisions", "DORA_2022_2554", 30, []string{"CONTRACT_CLAUSE"}, []string{"MONITORING_REVIEW", "RISK_ASSESSMENT"}},
		{"third-party risk", "DORA_2022_2554", 29, []string{"REGISTER_INVENTORY", "POLICY"}, []string{"RISK_ASSESSMENT", "DUE_DILIGENCE", "MONITORING_REVIEW", "EXIT_BCP_DR"}},
		{"incident management", "DORA_2022_2554", 19, []string{"PROCEDURE_RUNBOOK", "INCIDENT_RECORD"}, []string{"POLICY", "POSTMORTEM", "TEST_EVIDENCE", "TRAINING_ATTESTATION"}},
		{"default", "DORA_2022_2554", 5, []string{"POLICY"}, []string{"PROCEDURE_RUNBOOK"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := table.Match(tt.instrument, tt.article)
			assert.Equal(t, tt.primary, outcome.Primary)
			assert.Equal(t, tt.supporting, outcome.Supporting)
		})
	}
}

func TestBuiltinTopicTags(t *testing.T) {
	table := BuiltinRuleTable()

	assert.Equal(t, []string{"DORA"}, table.TopicTags("DORA_2022_2554", 5))
	assert.Equal(t, []string{"DORA", "RoI", "TPRM"}, table.TopicTags("DORA_2022_2554", 28))
	assert.Equal(t, []string{"DORA", "INCIDENT"}, table.TopicTags("DORA_2022_2554", 17))
	assert.Equal(t, []string{"DORA", "INCIDENT", "RoI", "TPRM"}, table.TopicTags("EU_2024_2956", 19))
	assert.Equal(t, []string{"DORA", "INCIDENT"}, table.TopicTags("EU_2025_301", 1))
}

func TestKeywordsFor(t *testing.T) {
	table := BuiltinRuleTable()

	assert.Equal(t,
		[]string{"classification", "incident", "maintain", "register of information", "reporting", "update"},
		table.KeywordsFor("Maintain the REGISTER and report each incident.", "en"))
	assert.Equal(t,
		[]string{"Klausel", "Prüfrechte", "Vertrag"},
		table.KeywordsFor("Der Vertrag enthält Folgendes.", "de"))
	assert.Equal(t, []string{}, table.KeywordsFor("", "de"))
	assert.Equal(t, []string{}, table.KeywordsFor("register", "fr"))
}

func TestNewSynthesizerRejectsUnknownCodes(t *testing.T) {
	_, err := NewSynthesizer(nil, []string{"POLICY"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEvidenceType))
	assert.Contains(t, err.Error(), "CONTRACT_CLAUSE")

	_, err = NewSynthesizer(nil, nil)
	assert.Error(t, err)

	_, err = NewSynthesizer(&RuleTable{}, []string{"POLICY"})
	assert.Error(t, err, "a table without default must be rejected")
}

func TestSynthesizeNotificationScenario(t *testing.T) {
	rows := []align.BilingualSegment{
		{
			InstrumentCode:      "DORA_2022_2554",
			LegalRef:            "Art. 19(1)",
			TextPrimary:         " Financial entities shall report major ICT-related incidents. ",
			TextSecondary:       "Finanzunternehmen melden jeden schwerwiegenden IKT-bezogenen Vorfall.",
			HasSecondary:        true,
			SourceHashPrimary:   "aaa",
			SourceHashSecondary: "bbb",
		},
	}

	reqs, report := newBuiltin(t).Synthesize(rows)
	require.Len(t, reqs, 1)

	req := reqs[0]
	assert.Equal(t, "DORA_2022_2554|19|1|-|001", req.ReqID)
	assert.Equal(t, 19, req.Article)
	assert.Equal(t, 1, req.Paragraph)
	assert.Empty(t, req.Point)
	assert.Equal(t, "Financial entities shall report major ICT-related incidents.", req.TextPrimary)
	assert.True(t, req.HasSecondary)
	assert.Equal(t, "en", req.LangPrimary)
	assert.Equal(t, "de", req.LangSecondary)
	assert.Equal(t, []string{"DORA", "INCIDENT"}, req.TopicTags)
	assert.Equal(t, []string{"PROCEDURE_RUNBOOK", "INCIDENT_RECORD"}, req.PrimaryEvidenceTypes)
	assert.Equal(t, []string{"classification", "incident", "reporting"}, req.KeywordsPrimary)
	assert.Equal(t, []string{"IKT-Vorfall", "Klassifikation", "Meldung"}, req.KeywordsSecondary)
	assert.Equal(t, "http://data.europa.eu/eli/reg/2022/2554/oj", req.ELI)
	assert.Equal(t, "aaa", req.SourceHashPrimary)

	assert.Equal(t, 1, report.Requirements)
	assert.Equal(t, 0, report.SkippedRefs)
	assert.Equal(t, map[string]int{"DORA_2022_2554": 1}, report.ByInstrument)
}

func TestSynthesizeSkipsUnparsableRefs(t *testing.T) {
	rows := []align.BilingualSegment{
		{InstrumentCode: "DORA_2022_2554", LegalRef: "Art. 114 thereof", TextPrimary: "x"},
		{InstrumentCode: "DORA_2022_2554", LegalRef: "Art. 28(3)", TextPrimary: "y"},
		{InstrumentCode: "DORA_2022_2554", LegalRef: "Art. 28(3)(b)", TextPrimary: "z"},
	}

	reqs, report := newBuiltin(t).Synthesize(rows)
	require.Len(t, reqs, 2)
	assert.Equal(t, "DORA_2022_2554|28|3|-|001", reqs[0].ReqID)
	assert.Equal(t, "DORA_2022_2554|28|3|b|001", reqs[1].ReqID)
	assert.False(t, reqs[0].HasSecondary)
	assert.Empty(t, reqs[0].TextSecondary)

	assert.Equal(t, 1, report.SkippedRefs)
	assert.Equal(t, []string{"DORA_2022_2554|Art. 114 thereof"}, report.SkippedRefSamples)
	assert.Equal(t, 2, report.WithoutSecondary)
}

func TestSynthesizeReqIDsAreUnique(t *testing.T) {
	rows := []align.BilingualSegment{
		{InstrumentCode: "X", LegalRef: "Art. 1(1)", TextPrimary: "first"},
		{InstrumentCode: "X", LegalRef: "Art.1(1)", TextPrimary: "second"},
		{InstrumentCode: "X", LegalRef: "Art. 1(2)", TextPrimary: "third"},
	}

	reqs, report := newBuiltin(t).Synthesize(rows)
	ids := map[string]bool{}
	for _, r := range reqs {
		assert.False(t, ids[r.ReqID], "duplicate %s", r.ReqID)
		ids[r.ReqID] = true
	}
	assert.Len(t, reqs, 2)
	assert.Equal(t, "first", reqs[0].TextPrimary)
	assert.Equal(t, 1, report.DuplicateIDs)
	assert.Equal(t, []string{"X|1|1|-|001"}, report.DuplicateIDSamples)
	assert.Equal(t, []string{"X"}, report.ELIUnresolved)
	assert.Empty(t, reqs[0].ELI)
}

func TestSynthesizeExplicitCELEX(t *testing.T) {
	s := newBuiltin(t)
	s.CELEX = map[string]string{"GDPR": "32016R0679"}

	reqs, _ := s.Synthesize([]align.BilingualSegment{{InstrumentCode: "GDPR", LegalRef: "Art. 5(1)", TextPrimary: "t"}})
	require.Len(t, reqs, 1)
	assert.Equal(t, "http://data.europa.eu/eli/reg/2016/679/oj", reqs[0].ELI)
}

func TestReqID(t *testing.T) {
	ref, err := citation.ParseRef("Art. 30(2)(c)")
	require.NoError(t, err)
	assert.Equal(t, "DORA_2022_2554|30|2|c|001", ReqID("DORA_2022_2554", ref))
}

func TestLoadRuleTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	content := `
base_topics: [NIS2]
default:
  primary: [POLICY]
  supporting: []
rules:
  - name: reporting
    articles: [23]
    primary: [INCIDENT_RECORD]
    supporting: [POSTMORTEM]
topics:
  - articles: [23]
    tags: [INCIDENT]
keywords:
  - lang: en
    any_of: [notify]
    keywords: [notification]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	table, err := LoadRuleTable(path)
	require.NoError(t, err)
	require.Len(t, table.Rules, 1)
	assert.Equal(t, "reporting", table.Rules[0].Name)
	assert.Equal(t, []string{"INCIDENT_RECORD"}, table.Match("NIS2_2022_2555", 23).Primary)
	assert.Equal(t, []string{"POLICY"}, table.Match("NIS2_2022_2555", 21).Primary)
	assert.Equal(t, []string{"INCIDENT", "NIS2"}, table.TopicTags("NIS2_2022_2555", 23))
	assert.Equal(t, []string{"notification"}, table.KeywordsFor("Entities shall notify.", "en"))
	assert.Equal(t, []string{"INCIDENT_RECORD", "POLICY", "POSTMORTEM"}, table.Codes())

	_, err = LoadRuleTable(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("rules: [::"), 0644))
	_, err = LoadRuleTable(path)
	assert.Error(t, err)
}
