package library

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/reqlib/pkg/synth"
)

func sampleRequirements() []synth.Requirement {
	return []synth.Requirement{
		{
			ReqID:                   "DORA_2022_2554|19|1|-|001",
			InstrumentCode:          "DORA_2022_2554",
			LegalRef:                "Art. 19(1)",
			Article:                 19,
			Paragraph:               1,
			TextPrimary:             "Financial entities shall report major ICT-related incidents, \"as defined\".",
			TextSecondary:           "Finanzunternehmen melden schwerwiegende Vorfälle.",
			HasSecondary:            true,
			LangPrimary:             "en",
			LangSecondary:           "de",
			TopicTags:               []string{"DORA", "INCIDENT"},
			PrimaryEvidenceTypes:    []string{"PROCEDURE_RUNBOOK", "INCIDENT_RECORD"},
			SupportingEvidenceTypes: []string{"POLICY"},
			KeywordsPrimary:         []string{"incident"},
			KeywordsSecondary:       []string{},
			SourceHashPrimary:       "aaa",
			SourceHashSecondary:     "bbb",
		},
		{
			ReqID:                   "DORA_2022_2554|28|3|b|001",
			InstrumentCode:          "DORA_2022_2554",
			LegalRef:                "Art. 28(3)(b)",
			Article:                 28,
			Paragraph:               3,
			Point:                   "b",
			TextPrimary:             "<maintain> & update the register",
			LangPrimary:             "en",
			LangSecondary:           "de",
			TopicTags:               []string{"DORA", "RoI", "TPRM"},
			PrimaryEvidenceTypes:    []string{"REGISTER_INVENTORY"},
			SupportingEvidenceTypes: []string{},
			KeywordsPrimary:         []string{},
			KeywordsSecondary:       []string{},
			SourceHashPrimary:       "aaa",
		},
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "requirements.jsonl")
	want := sampleRequirements()

	require.NoError(t, WriteJSONL(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "<maintain> & update", "HTML characters must not be escaped")
	assert.Contains(t, string(data), "Vorfälle")

	got, err := ReadJSONL[synth.Requirement](path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadJSONLSkipsBlankLinesAndReportsErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n\n  \n{\"n\":2}\n"), 0644))

	type record struct {
		N int `json:"n"`
	}
	got, err := ReadJSONL[record](path)
	require.NoError(t, err)
	assert.Equal(t, []record{{1}, {2}}, got)

	require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\nnot json\n"), 0644))
	_, err = ReadJSONL[record](path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReadJSONL[record](filepath.Join(dir, "missing.jsonl"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWriteAtomicLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestWriteRequirementsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.csv")
	require.NoError(t, WriteRequirementsCSV(path, sampleRequirements()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, RequirementColumns, records[0])

	row := map[string]string{}
	for i, column := range records[0] {
		row[column] = records[1][i]
	}
	assert.Equal(t, "DORA_2022_2554|19|1|-|001", row["req_id"])
	assert.Equal(t, "DORA|INCIDENT", row["topic_tags"])
	assert.Equal(t, "PROCEDURE_RUNBOOK|INCIDENT_RECORD", row["primary_evidence_types"])
	assert.Equal(t, "", row["keywords_secondary"])
	assert.Equal(t, "true", row["has_secondary"])
	assert.Equal(t, sampleRequirements()[0].TextPrimary, row["text_primary"])
	assert.Equal(t, "b", records[2][5])
}

func TestWriteRequirementsSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "requirements.sqlite")
	require.NoError(t, WriteRequirementsSQLite(ctx, path, sampleRequirements()))

	ids, err := QueryReqIDsByTag(ctx, path, TagTopic, "DORA")
	require.NoError(t, err)
	assert.Equal(t, []string{"DORA_2022_2554|19|1|-|001", "DORA_2022_2554|28|3|b|001"}, ids)

	ids, err = QueryReqIDsByTag(ctx, path, TagPrimaryEvidence, "REGISTER_INVENTORY")
	require.NoError(t, err)
	assert.Equal(t, []string{"DORA_2022_2554|28|3|b|001"}, ids)

	// A rewrite replaces the database instead of appending.
	require.NoError(t, WriteRequirementsSQLite(ctx, path, sampleRequirements()[:1]))
	ids, err = QueryReqIDsByTag(ctx, path, TagTopic, "DORA")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	_, err = QueryReqIDsByTag(ctx, filepath.Join(t.TempDir(), "none.sqlite"), TagTopic, "DORA")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLibraryPaths(t *testing.T) {
	lib := New("/lib", "v0_1")
	assert.Equal(t, "/lib/requirements__v0_1.jsonl", lib.RequirementsPath())
	assert.Equal(t, "/lib/requirements__v0_1.csv", lib.RequirementsCSVPath())
	assert.Equal(t, "/lib/requirements__v0_1.sqlite", lib.RequirementsSQLitePath())
	assert.Equal(t, "/lib/sources_manifest__v0_1.csv", lib.SourcesManifestPath())
	assert.Equal(t, "/lib/synthesis_report__v0_1.json", lib.SynthesisReportPath())
	assert.Equal(t, "/lib/audit_question_map__v0_1.jsonl", lib.AuditQuestionMapPath())
	assert.Equal(t, "/lib/qc_report__v0_1.json", lib.QCReportPath())
}

func TestLibrarySaveAndLoad(t *testing.T) {
	ctx := context.Background()
	lib := New(t.TempDir(), "v0_1")

	_, err := lib.LoadRequirements()
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, lib.SaveRequirements(ctx, sampleRequirements(), SaveOptions{SQLite: true}))
	for _, path := range []string{lib.RequirementsPath(), lib.RequirementsCSVPath(), lib.RequirementsSQLitePath()} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	loaded, err := lib.LoadRequirements()
	require.NoError(t, err)
	assert.Equal(t, sampleRequirements(), loaded)

	report := synth.Report{Rows: 3, Requirements: 2, SkippedRefs: 1, SkippedRefSamples: []string{"X|Art. 114"}, DuplicateIDSamples: []string{}, ByInstrument: map[string]int{"X": 2}}
	require.NoError(t, lib.SaveSynthesisReport(report))
	got, err := lib.LoadSynthesisReport()
	require.NoError(t, err)
	assert.Equal(t, report, got)
}
