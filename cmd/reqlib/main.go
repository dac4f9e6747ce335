package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coolbeans/reqlib/pkg/config"
	"github.com/coolbeans/reqlib/pkg/extract"
	"github.com/coolbeans/reqlib/pkg/library"
	"github.com/coolbeans/reqlib/pkg/manifest"
	"github.com/coolbeans/reqlib/pkg/normalize"
	"github.com/coolbeans/reqlib/pkg/pipeline"
	"github.com/coolbeans/reqlib/pkg/qc"
)

var version = "0.1.0"

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reqlib",
		Short: "Bilingual regulatory requirement library builder",
		Long: `reqlib turns official EU legal texts into a bilingual requirement library.

It normalizes HTML, XHTML and PDF sources, segments them into articles,
paragraphs and points, aligns two language versions by legal reference,
tags every requirement with evidence types and topics, maps an audit
questionnaire onto the library and runs quality checks.

Typical use:
  reqlib run                 # hash, extract, align, build, map, qc
  reqlib run --watch         # re-run on every config or source change
  reqlib qc --fail-on-error  # gate CI on QC errors
  reqlib query --tag topic=INCIDENT`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultProjectFile, "Project file")
	flags.Bool("verbose", false, "Debug logging")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("join-policy", "", "Override join policy: left or inner")
	flags.String("qc-mode", "", "Override QC mode: primary_canonical or bilingual_strict")
	flags.Int("workers", 0, "Override the number of documents extracted concurrently")
	flags.String("granularity", "", "Override segment granularity: paragraph or point")
	flags.Bool("sqlite", false, "Also export the library as SQLite")

	rootCmd.AddCommand(hashCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(alignCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(qcCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(segmentCmd())
	rootCmd.AddCommand(queryCmd())
	return rootCmd
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("log-format")

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if format == "json" {
		out = os.Stderr
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// loadProject reads the project file and applies command-line overrides.
// A missing project file is only an error when --config was given
// explicitly; otherwise the defaults rooted at the working directory apply.
func loadProject(cmd *cobra.Command, logger zerolog.Logger) (*config.Project, error) {
	path, _ := cmd.Flags().GetString("config")

	project, err := config.LoadProject(path)
	if errors.Is(err, config.ErrMissingInput) && !cmd.Flags().Changed("config") {
		logger.Debug().Str("path", path).Msg("no project file, using defaults")
		project = config.DefaultConfig()
		err = nil
	}
	if err != nil {
		return nil, err
	}

	applyOverrides(cmd, project)
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	return project, nil
}

func applyOverrides(cmd *cobra.Command, project *config.Project) {
	flags := cmd.Flags()
	if flags.Changed("join-policy") {
		project.JoinPolicy, _ = flags.GetString("join-policy")
	}
	if flags.Changed("qc-mode") {
		project.QCMode, _ = flags.GetString("qc-mode")
	}
	if flags.Changed("workers") {
		project.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("granularity") {
		project.Granularity, _ = flags.GetString("granularity")
	}
	if flags.Changed("sqlite") {
		project.SQLite, _ = flags.GetBool("sqlite")
	}
}

func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	logger := newLogger(cmd)
	project, err := loadProject(cmd, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(project, logger)
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash the source documents and write the source manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			m, err := p.Hash(cmd.Context())
			if err != nil {
				return err
			}
			for _, entry := range m.Entries {
				fmt.Printf("%s  %s/%s  %s\n", entry.SHA256, entry.InstrumentCode, entry.Lang, entry.FilePath)
			}
			return nil
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Normalize and segment the source documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			report, err := p.Extract(cmd.Context())
			if err != nil {
				return err
			}
			for _, doc := range report.Documents {
				fmt.Printf("%-20s %s  articles=%d paragraphs=%d segments=%d\n",
					doc.InstrumentCode, doc.Lang, doc.Articles, doc.Paragraphs, doc.Segments)
			}
			return nil
		},
	}
}

func alignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "align",
		Short: "Join the primary and secondary segment streams by legal reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			result, err := p.Align(cmd.Context())
			if err != nil {
				return err
			}
			r := result.Report
			fmt.Printf("Rows: %d (common keys %d, missing secondary %d, only secondary %d, policy %s)\n",
				r.Rows, r.CommonKeys, r.MissingSecondary, r.OnlySecondary, r.Policy)
			return nil
		},
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Synthesize the requirement library from the bilingual stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			report, err := p.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Requirements: %d (skipped refs %d, duplicate ids %d)\n",
				report.Requirements, report.SkippedRefs, report.DuplicateIDs)
			fmt.Printf("Written to %s\n", p.Library().RequirementsPath())
			return nil
		},
	}
}

func mapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Map the audit questionnaire onto the requirement library",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			mappings, err := p.Map(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range mappings {
				fmt.Printf("%-12s %-10s related=%d\n", m.QuestionID, m.Workflow, m.RelatedTotal)
			}
			return nil
		},
	}
}

func qcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qc",
		Short: "Check the requirement library and write the QC report",
		RunE: func(cmd *cobra.Command, args []string) error {
			failOnError, _ := cmd.Flags().GetBool("fail-on-error")

			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			report, err := p.QC(cmd.Context())
			if err != nil {
				return err
			}
			printQC(report)
			if failOnError && report.HasErrors() {
				return &exitError{code: 2, msg: fmt.Sprintf("qc found %d errors", report.ErrorsCount)}
			}
			return nil
		},
	}
	cmd.Flags().Bool("fail-on-error", false, "Exit with status 2 when QC reports errors")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage from hashing to QC",
		Long: `Run hash, extract, align, build, map and qc in order.

With --watch the pipeline keeps running and starts again whenever a
configuration file, locale pattern or source document changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			extra, _ := cmd.Flags().GetStringSlice("watch-path")
			failOnError, _ := cmd.Flags().GetBool("fail-on-error")

			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}

			if !watch {
				report, err := p.Run(cmd.Context())
				if err != nil {
					return err
				}
				printQC(report)
				if failOnError && report.HasErrors() {
					return &exitError{code: 2, msg: fmt.Sprintf("qc found %d errors", report.ErrorsCount)}
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return p.Watch(ctx, extra, func(report qc.Report, err error) {
				if err == nil {
					printQC(report)
				}
			})
		},
	}
	cmd.Flags().Bool("watch", false, "Re-run whenever inputs change")
	cmd.Flags().StringSlice("watch-path", nil, "Additional files or directories to watch")
	cmd.Flags().Bool("fail-on-error", false, "Exit with status 2 when QC reports errors")
	return cmd
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file>",
		Short: "Print the normalized text of an HTML, XHTML or PDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := normalize.NewNormalizer().NormalizeFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

func segmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment <file>",
		Short: "Print the segments of one document as JSON lines",
		Long: `Segment a single document without touching the project outputs.

Example:
  reqlib segment sources/dora_en.html --lang en --instrument DORA_2022_2554`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			code, _ := cmd.Flags().GetString("instrument")
			showStats, _ := cmd.Flags().GetBool("stats")

			if code == "" {
				code = strings.ToUpper(strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])))
			}

			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			locale, ok := p.Registry().Get(lang)
			if !ok {
				return fmt.Errorf("no locale pattern for lang %s (have %s)", lang, strings.Join(p.Registry().Langs(), ", "))
			}
			instrument, err := instrumentSettings(p, code, lang)
			if err != nil {
				return err
			}
			applySegmentFlags(cmd, &instrument, p.Project().Granularity)
			hash, err := manifest.HashFile(args[0])
			if err != nil {
				return err
			}

			segmenter, err := extract.NewSegmenter(extract.Options{
				InstrumentCode:        instrument.Code,
				Lang:                  strings.ToLower(lang),
				SourceHash:            hash,
				Locale:                locale,
				MaxArticle:            instrument.MaxArticle,
				IncludeArticles:       instrument.IncludeArticles,
				ExpectedMinParagraphs: instrument.ExpectedMinParagraphs,
				Granularity:           extract.Granularity(instrument.Granularity),
			})
			if err != nil {
				return err
			}
			text, err := normalize.NewNormalizer().NormalizeFile(args[0])
			if err != nil {
				return err
			}
			segments, stats := segmenter.Segment(text)

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetEscapeHTML(false)
			for _, segment := range segments {
				if err := encoder.Encode(segment); err != nil {
					return fmt.Errorf("failed to write segment: %w", err)
				}
			}
			if showStats {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode stats: %w", err)
				}
				fmt.Fprintln(os.Stderr, string(data))
			}
			return nil
		},
	}
	cmd.Flags().String("lang", "en", "Language of the document")
	cmd.Flags().String("instrument", "", "Instrument code; settings of a listed instrument apply (default: file name)")
	cmd.Flags().Int("max-article", 0, "Highest article number accepted (0 for the default)")
	cmd.Flags().IntSlice("articles", nil, "Only emit these articles")
	cmd.Flags().Bool("stats", false, "Print segmentation statistics to stderr")
	return cmd
}

// instrumentSettings looks code up in the project's instruments file so a
// listed instrument segments with its configured policy. Unlisted codes and
// projects without an instruments file get default settings.
func instrumentSettings(p *pipeline.Pipeline, code, lang string) (config.Instrument, error) {
	instruments, err := p.Instruments()
	if errors.Is(err, config.ErrMissingInput) {
		return config.Instrument{Code: code}, nil
	}
	if err != nil {
		return config.Instrument{}, err
	}
	instrument, ok := instruments.Find(code)
	if !ok {
		return config.Instrument{Code: code}, nil
	}
	if _, ok := instrument.Version(lang); !ok {
		return config.Instrument{}, fmt.Errorf("instrument %s has no %s version", instrument.Code, lang)
	}
	return instrument, nil
}

// applySegmentFlags lets explicit segment flags override the instrument's
// policy. Granularity falls back to the project's.
func applySegmentFlags(cmd *cobra.Command, instrument *config.Instrument, projectGranularity string) {
	flags := cmd.Flags()
	if flags.Changed("max-article") {
		instrument.MaxArticle, _ = flags.GetInt("max-article")
	}
	if flags.Changed("articles") {
		instrument.IncludeArticles, _ = flags.GetIntSlice("articles")
	}
	if flags.Changed("granularity") {
		instrument.Granularity, _ = flags.GetString("granularity")
	}
	if instrument.Granularity == "" {
		instrument.Granularity = projectGranularity
	}
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List the requirements carrying a tag in the SQLite export",
		Long: `Look up requirement ids by tag in the SQLite library written by
"reqlib build --sqlite".

Tag kinds: ` + strings.Join(library.TagKinds, ", ") + `

Example:
  reqlib query --tag topic=INCIDENT
  reqlib query --tag primary_evidence=REGISTER_INVENTORY`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			kind, value, err := parseTag(tag)
			if err != nil {
				return err
			}

			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			ids, err := library.QueryReqIDsByTag(cmd.Context(), p.Library().RequirementsSQLitePath(), kind, value)
			if errors.Is(err, library.ErrNotFound) {
				return fmt.Errorf("%w (run build with --sqlite first)", err)
			}
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().String("tag", "", "Tag to look up, as kind=value")
	return cmd
}

// parseTag splits a kind=value tag and checks the kind.
func parseTag(tag string) (kind, value string, err error) {
	kind, value, ok := strings.Cut(tag, "=")
	kind, value = strings.TrimSpace(kind), strings.TrimSpace(value)
	if !ok || kind == "" || value == "" {
		return "", "", fmt.Errorf("invalid tag %q, want kind=value", tag)
	}
	for _, known := range library.TagKinds {
		if kind == known {
			return kind, value, nil
		}
	}
	return "", "", fmt.Errorf("unknown tag kind %q (want one of %s)", kind, strings.Join(library.TagKinds, ", "))
}

func printQC(report qc.Report) {
	fmt.Printf("QC (%s): %d requirements, %d audit questions, %d errors, %d warnings\n",
		report.QCMode, report.RequirementsCount, report.AuditQuestionsCount, report.ErrorsCount, report.WarningsCount)
	for _, msg := range report.ErrorsPreview {
		fmt.Printf("  error:   %s\n", msg)
	}
	for _, msg := range report.WarningsPreview {
		fmt.Printf("  warning: %s\n", msg)
	}
}
