// Package pipeline wires the extraction, alignment and synthesis stages to
// the project's files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coolbeans/reqlib/pkg/config"
	"github.com/coolbeans/reqlib/pkg/library"
	"github.com/coolbeans/reqlib/pkg/manifest"
	"github.com/coolbeans/reqlib/pkg/normalize"
	"github.com/coolbeans/reqlib/pkg/pattern"
	"github.com/coolbeans/reqlib/pkg/qc"
)

// DefaultDebounce is the quiet period Watch waits for before re-running.
const DefaultDebounce = 500 * time.Millisecond

// Pipeline runs the stages of one project. Each stage reads the previous
// stage's files, so stages can also be run one at a time.
type Pipeline struct {
	project    *config.Project
	registry   *pattern.Registry
	library    *library.Library
	normalizer *normalize.Normalizer
	log        zerolog.Logger

	// Now stamps manifest entries without a retrieval time.
	Now func() time.Time

	// Debounce is the quiet period used by Watch.
	Debounce time.Duration
}

// New creates a pipeline for project. Locale patterns are the built-in ones
// overlaid with the project's pattern directory, if any.
func New(project *config.Project, logger zerolog.Logger) (*Pipeline, error) {
	if project == nil {
		return nil, errors.New("project is required")
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}

	registry := pattern.NewDefaultRegistry()
	if dir := project.Resolve(project.Paths.Patterns); dir != "" {
		var err error
		if registry, err = pattern.NewRegistryWithDirectory(dir); err != nil {
			return nil, fmt.Errorf("failed to load locale patterns: %w", err)
		}
	}

	return &Pipeline{
		project:    project,
		registry:   registry,
		library:    library.New(project.LibraryDir(), project.Version),
		normalizer: normalize.NewNormalizer(),
		log:        logger,
		Now:        time.Now,
		Debounce:   DefaultDebounce,
	}, nil
}

// Project returns the pipeline's project.
func (p *Pipeline) Project() *config.Project {
	return p.project
}

// Registry returns the locale pattern registry.
func (p *Pipeline) Registry() *pattern.Registry {
	return p.registry
}

// Library returns the requirement library the pipeline writes.
func (p *Pipeline) Library() *library.Library {
	return p.library
}

// SegmentsPath returns the segment stream path of a language.
func (p *Pipeline) SegmentsPath(lang string) string {
	return filepath.Join(p.project.ExtractedDir(), fmt.Sprintf("segments__%s.jsonl", strings.ToUpper(lang)))
}

// ExtractionReportPath returns the path of the extraction diagnostics.
func (p *Pipeline) ExtractionReportPath() string {
	return p.extractedFile("extraction_report", ".json")
}

// BilingualPath returns the path of the aligned bilingual stream.
func (p *Pipeline) BilingualPath() string {
	return p.extractedFile("bilingual_segments", ".jsonl")
}

// AlignmentReportPath returns the path of the alignment report.
func (p *Pipeline) AlignmentReportPath() string {
	return p.extractedFile("bilingual_alignment_report", ".json")
}

func (p *Pipeline) extractedFile(stem, ext string) string {
	return filepath.Join(p.project.ExtractedDir(), fmt.Sprintf("%s__%s%s", stem, p.project.Version, ext))
}

// Run executes hash, extract, align, build, map and qc in order and returns
// the QC report.
func (p *Pipeline) Run(ctx context.Context) (qc.Report, error) {
	started := time.Now()

	if _, err := p.Hash(ctx); err != nil {
		return qc.Report{}, err
	}
	if _, err := p.Extract(ctx); err != nil {
		return qc.Report{}, err
	}
	if _, err := p.Align(ctx); err != nil {
		return qc.Report{}, err
	}
	if _, err := p.Build(ctx); err != nil {
		return qc.Report{}, err
	}
	if _, err := p.Map(ctx); err != nil {
		return qc.Report{}, err
	}
	report, err := p.QC(ctx)
	if err != nil {
		return qc.Report{}, err
	}

	p.log.Info().
		Dur("elapsed", time.Since(started)).
		Int("requirements", report.RequirementsCount).
		Int("errors", report.ErrorsCount).
		Int("warnings", report.WarningsCount).
		Msg("pipeline finished")
	return report, nil
}

// Instruments loads the project's instruments file.
func (p *Pipeline) Instruments() (*config.Instruments, error) {
	return config.LoadInstruments(p.project.Resolve(p.project.Paths.Instruments))
}

// sourceManifest loads the written manifest, or hashes the sources when no
// manifest has been written yet.
func (p *Pipeline) sourceManifest(ctx context.Context, instruments *config.Instruments) (*manifest.Manifest, error) {
	m, err := manifest.Load(p.library.SourcesManifestPath())
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, config.ErrMissingInput) {
		return nil, err
	}
	p.log.Debug().Str("path", p.library.SourcesManifestPath()).Msg("no source manifest, hashing sources")
	return manifest.Build(ctx, instruments, p.Now())
}

// checkLocales fails when a language of the instruments file has no locale
// pattern, before any document is read.
func (p *Pipeline) checkLocales(instruments *config.Instruments) error {
	var missing []string
	for _, lang := range instruments.Langs() {
		if _, ok := p.registry.Get(lang); !ok {
			missing = append(missing, lang)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no locale pattern for %s (have %s)",
			strings.Join(missing, ", "), strings.Join(p.registry.Langs(), ", "))
	}
	return nil
}
