// Package library reads and writes the requirement library and the reports
// produced alongside it. Every file is replaced atomically.
package library

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/coolbeans/reqlib/pkg/synth"
)

// File name stems; the library version is appended as "__<version>".
const (
	sourcesManifestStem  = "sources_manifest"
	requirementsStem     = "requirements"
	synthesisReportStem  = "synthesis_report"
	auditQuestionMapStem = "audit_question_map"
	qcReportStem         = "qc_report"
)

// Library is a versioned set of library files in one directory.
type Library struct {
	path    string
	version string
}

// SaveOptions controls which requirement exports are written.
type SaveOptions struct {
	SQLite bool
}

// New returns the library for a directory and version. Nothing is read or
// created until a file is saved or loaded.
func New(libraryPath, version string) *Library {
	return &Library{path: libraryPath, version: version}
}

// Path returns the library directory.
func (lib *Library) Path() string {
	return lib.path
}

// Version returns the library version.
func (lib *Library) Version() string {
	return lib.version
}

func (lib *Library) file(stem, ext string) string {
	return filepath.Join(lib.path, fmt.Sprintf("%s__%s%s", stem, lib.version, ext))
}

// SourcesManifestPath returns the path of the source manifest CSV.
func (lib *Library) SourcesManifestPath() string {
	return lib.file(sourcesManifestStem, ".csv")
}

// RequirementsPath returns the path of the requirements JSONL file.
func (lib *Library) RequirementsPath() string {
	return lib.file(requirementsStem, ".jsonl")
}

// RequirementsCSVPath returns the path of the requirements CSV export.
func (lib *Library) RequirementsCSVPath() string {
	return lib.file(requirementsStem, ".csv")
}

// RequirementsSQLitePath returns the path of the optional SQLite export.
func (lib *Library) RequirementsSQLitePath() string {
	return lib.file(requirementsStem, ".sqlite")
}

// SynthesisReportPath returns the path of the synthesis report.
func (lib *Library) SynthesisReportPath() string {
	return lib.file(synthesisReportStem, ".json")
}

// AuditQuestionMapPath returns the path of the audit question map.
func (lib *Library) AuditQuestionMapPath() string {
	return lib.file(auditQuestionMapStem, ".jsonl")
}

// QCReportPath returns the path of the QC report.
func (lib *Library) QCReportPath() string {
	return lib.file(qcReportStem, ".json")
}

// SaveRequirements writes the JSONL and CSV forms of the library and, when
// requested, the SQLite export.
func (lib *Library) SaveRequirements(ctx context.Context, requirements []synth.Requirement, opts SaveOptions) error {
	if err := WriteJSONL(lib.RequirementsPath(), requirements); err != nil {
		return fmt.Errorf("failed to save requirements: %w", err)
	}
	if err := WriteRequirementsCSV(lib.RequirementsCSVPath(), requirements); err != nil {
		return fmt.Errorf("failed to save requirements CSV: %w", err)
	}
	if opts.SQLite {
		if err := WriteRequirementsSQLite(ctx, lib.RequirementsSQLitePath(), requirements); err != nil {
			return fmt.Errorf("failed to save requirements database: %w", err)
		}
	}
	return nil
}

// LoadRequirements reads the requirements JSONL file.
func (lib *Library) LoadRequirements() ([]synth.Requirement, error) {
	return ReadJSONL[synth.Requirement](lib.RequirementsPath())
}

// SaveSynthesisReport writes the synthesis report.
func (lib *Library) SaveSynthesisReport(report synth.Report) error {
	return WriteJSON(lib.SynthesisReportPath(), report)
}

// LoadSynthesisReport reads the synthesis report.
func (lib *Library) LoadSynthesisReport() (synth.Report, error) {
	var report synth.Report
	err := ReadJSON(lib.SynthesisReportPath(), &report)
	return report, err
}
