package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/reqlib/pkg/align"
	"github.com/coolbeans/reqlib/pkg/config"
	"github.com/coolbeans/reqlib/pkg/extract"
	"github.com/coolbeans/reqlib/pkg/library"
	"github.com/coolbeans/reqlib/pkg/manifest"
	"github.com/coolbeans/reqlib/pkg/qc"
	"github.com/coolbeans/reqlib/pkg/synth"
)

// ExtractionReport collects the segmentation diagnostics of every document.
type ExtractionReport struct {
	Version   string          `json:"version"`
	Documents []extract.Stats `json:"documents"`
	Segments  map[string]int  `json:"segments"`
}

// Hash writes the source manifest.
func (p *Pipeline) Hash(ctx context.Context) (*manifest.Manifest, error) {
	instruments, err := p.Instruments()
	if err != nil {
		return nil, err
	}
	m, err := manifest.Build(ctx, instruments, p.Now())
	if err != nil {
		return nil, err
	}
	if err := m.Write(p.library.SourcesManifestPath()); err != nil {
		return nil, fmt.Errorf("failed to write source manifest: %w", err)
	}
	p.log.Info().Int("sources", len(m.Entries)).Str("path", p.library.SourcesManifestPath()).Msg("hashed sources")
	return m, nil
}

type extractJob struct {
	instrument config.Instrument
	version    config.Version
}

type extractResult struct {
	segments []extract.Segment
	stats    extract.Stats
}

// Extract normalizes and segments every source document and writes one
// segment stream per language plus the extraction report. Documents are
// processed concurrently; output order follows the instruments file.
func (p *Pipeline) Extract(ctx context.Context) (*ExtractionReport, error) {
	instruments, err := p.Instruments()
	if err != nil {
		return nil, err
	}
	if err := p.checkLocales(instruments); err != nil {
		return nil, err
	}
	sources, err := p.sourceManifest(ctx, instruments)
	if err != nil {
		return nil, err
	}

	var jobs []extractJob
	for _, instrument := range instruments.Instruments {
		for _, version := range instrument.Versions {
			jobs = append(jobs, extractJob{instrument: instrument, version: version})
		}
	}

	results := make([]extractResult, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.project.Workers)
	for i, job := range jobs {
		i, job := i, job
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			result, err := p.extractDocument(job, sources)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	byLang := map[string][]extract.Segment{
		strings.ToLower(p.project.PrimaryLang):   {},
		strings.ToLower(p.project.SecondaryLang): {},
	}
	report := &ExtractionReport{Version: p.project.Version, Segments: make(map[string]int)}
	for _, result := range results {
		lang := strings.ToLower(result.stats.Lang)
		byLang[lang] = append(byLang[lang], result.segments...)
		report.Documents = append(report.Documents, result.stats)
	}

	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		segments := byLang[lang]
		report.Segments[lang] = len(segments)
		if err := library.WriteJSONL(p.SegmentsPath(lang), segments); err != nil {
			return nil, fmt.Errorf("failed to write %s segments: %w", lang, err)
		}
	}
	if err := library.WriteJSON(p.ExtractionReportPath(), report); err != nil {
		return nil, fmt.Errorf("failed to write extraction report: %w", err)
	}
	return report, nil
}

func (p *Pipeline) extractDocument(job extractJob, sources *manifest.Manifest) (extractResult, error) {
	instrument, version := job.instrument, job.version
	logger := p.log.With().Str("instrument", instrument.Code).Str("lang", version.Lang).Logger()

	hash, err := sources.HashForPath(version.Path)
	if err != nil {
		return extractResult{}, err
	}
	locale, ok := p.registry.Get(version.Lang)
	if !ok {
		return extractResult{}, fmt.Errorf("no locale pattern for lang %s (%s)", version.Lang, instrument.Code)
	}

	granularity := instrument.Granularity
	if granularity == "" {
		granularity = p.project.Granularity
	}
	segmenter, err := extract.NewSegmenter(extract.Options{
		InstrumentCode:        instrument.Code,
		Lang:                  strings.ToLower(version.Lang),
		SourceHash:            hash,
		Locale:                locale,
		MaxArticle:            instrument.MaxArticle,
		IncludeArticles:       instrument.IncludeArticles,
		ExpectedMinParagraphs: instrument.ExpectedMinParagraphs,
		Granularity:           extract.Granularity(granularity),
	})
	if err != nil {
		return extractResult{}, err
	}

	text, err := p.normalizer.NormalizeFile(version.Path)
	if err != nil {
		return extractResult{}, err
	}
	segments, stats := segmenter.Segment(text)
	if stats.Articles == 0 {
		return extractResult{}, fmt.Errorf("%w in %s (%s/%s, %d heading matches, discarded %v)",
			extract.ErrNoArticles, version.Path, instrument.Code, version.Lang, stats.HeadingMatches, stats.Discarded)
	}

	event := logger.Info()
	if len(stats.UnderExpected) > 0 {
		event = logger.Warn()
	}
	event.
		Int("articles", stats.Articles).
		Bool("fallback", stats.UsedFallback).
		Ints("discarded", stats.Discarded).
		Ints("under_expected", stats.UnderExpected).
		Int("segments", stats.Segments).
		Msg("extracted document")
	return extractResult{segments: segments, stats: stats}, nil
}

// Align joins the primary and secondary segment streams and writes the
// bilingual stream and the alignment report.
func (p *Pipeline) Align(ctx context.Context) (*align.Result, error) {
	primary, err := library.ReadJSONL[extract.Segment](p.SegmentsPath(p.project.PrimaryLang))
	if err != nil {
		return nil, missingInput(err)
	}
	secondary, err := library.ReadJSONL[extract.Segment](p.SegmentsPath(p.project.SecondaryLang))
	if err != nil {
		return nil, missingInput(err)
	}

	policy, err := align.ParsePolicy(p.project.JoinPolicy)
	if err != nil {
		return nil, err
	}
	aligner := align.NewAligner(p.project.PrimaryLang, p.project.SecondaryLang, policy, p.registry.HeadingWords())
	aligner.SampleSize = p.project.SampleSize
	result := aligner.Align(primary, secondary)

	if err := library.WriteJSONL(p.BilingualPath(), result.Rows); err != nil {
		return nil, fmt.Errorf("failed to write bilingual segments: %w", err)
	}
	if err := library.WriteJSON(p.AlignmentReportPath(), result.Report); err != nil {
		return nil, fmt.Errorf("failed to write alignment report: %w", err)
	}

	p.log.Info().
		Int("rows", result.Report.Rows).
		Int("common_keys", result.Report.CommonKeys).
		Int("missing_secondary", result.Report.MissingSecondary).
		Int("only_secondary", result.Report.OnlySecondary).
		Str("policy", string(result.Report.Policy)).
		Msg("aligned segments")
	return &result, nil
}

// Build synthesizes the requirement library from the bilingual stream.
func (p *Pipeline) Build(ctx context.Context) (*synth.Report, error) {
	rows, err := library.ReadJSONL[align.BilingualSegment](p.BilingualPath())
	if err != nil {
		return nil, missingInput(err)
	}
	instruments, err := p.Instruments()
	if err != nil {
		return nil, err
	}
	vocabulary, err := config.LoadVocabulary(p.project.Resolve(p.project.Paths.EvidenceTypes))
	if err != nil {
		return nil, err
	}
	table, err := config.LoadRules(p.project.Resolve(p.project.Paths.Rules))
	if err != nil {
		return nil, err
	}

	synthesizer, err := synth.NewSynthesizer(table, vocabulary.Codes())
	if err != nil {
		return nil, err
	}
	synthesizer.PrimaryLang = p.project.PrimaryLang
	synthesizer.SecondaryLang = p.project.SecondaryLang
	synthesizer.SampleSize = p.project.SampleSize
	synthesizer.CELEX = instruments.CELEX()

	requirements, report := synthesizer.Synthesize(rows)
	if err := p.library.SaveRequirements(ctx, requirements, library.SaveOptions{SQLite: p.project.SQLite}); err != nil {
		return nil, err
	}
	if err := p.library.SaveSynthesisReport(report); err != nil {
		return nil, fmt.Errorf("failed to write synthesis report: %w", err)
	}

	p.log.Info().
		Int("requirements", report.Requirements).
		Int("skipped_refs", report.SkippedRefs).
		Int("duplicate_ids", report.DuplicateIDs).
		Str("path", p.library.RequirementsPath()).
		Msg("built requirement library")
	return &report, nil
}

// Map links the audit questionnaire to the requirement library.
func (p *Pipeline) Map(ctx context.Context) ([]qc.AuditMapping, error) {
	questions, err := config.LoadAuditQuestions(p.project.Resolve(p.project.Paths.AuditQuestions))
	if err != nil {
		return nil, err
	}
	requirements, err := p.library.LoadRequirements()
	if err != nil {
		return nil, missingInput(err)
	}

	mappings := qc.MapAuditQuestions(questions, requirements, p.project.RelatedLimit)
	if err := library.WriteJSONL(p.library.AuditQuestionMapPath(), mappings); err != nil {
		return nil, fmt.Errorf("failed to write audit question map: %w", err)
	}
	p.log.Info().Int("questions", len(mappings)).Msg("mapped audit questions")
	return mappings, nil
}

// QC checks the library and writes the QC report.
func (p *Pipeline) QC(ctx context.Context) (qc.Report, error) {
	mode, err := qc.ParseMode(p.project.QCMode)
	if err != nil {
		return qc.Report{}, err
	}
	vocabulary, err := config.LoadVocabulary(p.project.Resolve(p.project.Paths.EvidenceTypes))
	if err != nil {
		return qc.Report{}, err
	}
	requirements, err := p.library.LoadRequirements()
	if err != nil {
		return qc.Report{}, missingInput(err)
	}
	mappings, err := library.ReadJSONL[qc.AuditMapping](p.library.AuditQuestionMapPath())
	if err != nil {
		return qc.Report{}, missingInput(err)
	}

	input := qc.Input{
		Version:      p.project.Version,
		Mode:         mode,
		Vocabulary:   vocabulary.Codes(),
		Requirements: requirements,
		Mappings:     mappings,
		PreviewSize:  p.project.PreviewSize,
	}
	if synthesis, err := p.library.LoadSynthesisReport(); err == nil {
		input.Synthesis = &synthesis
	} else if !errors.Is(err, library.ErrNotFound) {
		return qc.Report{}, err
	}

	report := qc.Check(input)
	if err := library.WriteJSON(p.library.QCReportPath(), report); err != nil {
		return qc.Report{}, fmt.Errorf("failed to write qc report: %w", err)
	}

	event := p.log.Info()
	if report.HasErrors() {
		event = p.log.Warn()
	}
	event.Int("errors", report.ErrorsCount).Int("warnings", report.WarningsCount).Str("mode", string(mode)).Msg("qc finished")
	return report, nil
}

// missingInput maps a library file that has not been produced yet onto
// config.ErrMissingInput.
func missingInput(err error) error {
	if errors.Is(err, library.ErrNotFound) {
		return fmt.Errorf("%w: %v (run the previous stage first)", config.ErrMissingInput, err)
	}
	return err
}
