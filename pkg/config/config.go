// Package config loads the project file and the data files it points to:
// instruments, evidence vocabulary, rule table and audit questions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingInput is returned when a configured input file does not exist.
var ErrMissingInput = errors.New("missing input")

// DefaultProjectFile is the project file name looked up by the CLI.
const DefaultProjectFile = "reqlib.yaml"

var validate = validator.New()

// Paths lists the files and directories a project reads and writes.
type Paths struct {
	Instruments    string `yaml:"instruments" validate:"required"`
	EvidenceTypes  string `yaml:"evidence_types" validate:"required"`
	Rules          string `yaml:"rules,omitempty"`
	AuditQuestions string `yaml:"audit_questions,omitempty"`
	Patterns       string `yaml:"patterns,omitempty"`
	Extracted      string `yaml:"extracted" validate:"required"`
	Library        string `yaml:"library" validate:"required"`
}

// Project is the reqlib.yaml project file.
type Project struct {
	Version       string `yaml:"version" validate:"required"`
	PrimaryLang   string `yaml:"primary_lang" validate:"required,nefield=SecondaryLang"`
	SecondaryLang string `yaml:"secondary_lang" validate:"required"`
	JoinPolicy    string `yaml:"join_policy" validate:"oneof=left inner"`
	QCMode        string `yaml:"qc_mode" validate:"oneof=primary_canonical bilingual_strict en_canonical"`
	SampleSize    int    `yaml:"sample_size" validate:"gte=1"`
	RelatedLimit  int    `yaml:"related_limit" validate:"gte=1"`
	PreviewSize   int    `yaml:"preview_size" validate:"gte=1"`
	Workers       int    `yaml:"workers" validate:"gte=1,lte=64"`
	Granularity   string `yaml:"granularity" validate:"oneof=paragraph point"`
	SQLite        bool   `yaml:"sqlite"`
	Paths         Paths  `yaml:"paths"`

	dir string
}

// DefaultConfig returns a project with default settings, rooted at the
// current directory.
func DefaultConfig() *Project {
	return &Project{
		Version:       "v0_1",
		PrimaryLang:   "en",
		SecondaryLang: "de",
		JoinPolicy:    "left",
		QCMode:        "primary_canonical",
		SampleSize:    20,
		RelatedLimit:  80,
		PreviewSize:   50,
		Workers:       4,
		Granularity:   "paragraph",
		Paths: Paths{
			Instruments:   filepath.Join("config", "instruments.yml"),
			EvidenceTypes: filepath.Join("config", "evidence_types.yml"),
			Extracted:     "extracted",
			Library:       "library",
		},
		dir: ".",
	}
}

// LoadProject reads a project file. Fields the file leaves out keep their
// DefaultConfig values and relative paths resolve against the file's
// directory.
func LoadProject(path string) (*Project, error) {
	data, err := readInput(path, "project file")
	if err != nil {
		return nil, err
	}

	project := DefaultConfig()
	if err := yaml.Unmarshal(data, project); err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}
	project.dir = filepath.Dir(path)

	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project file %s: %w", path, err)
	}
	return project, nil
}

// Validate checks the project settings.
func (p *Project) Validate() error {
	return validate.Struct(p)
}

// Dir returns the directory relative paths resolve against.
func (p *Project) Dir() string {
	return p.dir
}

// SetDir changes the directory relative paths resolve against.
func (p *Project) SetDir(dir string) {
	p.dir = dir
}

// Resolve returns path resolved against the project directory. Empty and
// absolute paths are returned unchanged.
func (p *Project) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}

// ExtractedDir returns the resolved directory for segment streams and
// alignment outputs.
func (p *Project) ExtractedDir() string {
	return p.Resolve(p.Paths.Extracted)
}

// LibraryDir returns the resolved directory for the requirement library.
func (p *Project) LibraryDir() string {
	return p.Resolve(p.Paths.Library)
}

// WatchPaths returns the resolved files and directories whose changes
// should trigger a new run.
func (p *Project) WatchPaths() []string {
	var paths []string
	for _, path := range []string{p.Paths.Instruments, p.Paths.EvidenceTypes, p.Paths.Rules, p.Paths.AuditQuestions, p.Paths.Patterns} {
		if path != "" {
			paths = append(paths, p.Resolve(path))
		}
	}
	return paths
}

func readInput(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %s", ErrMissingInput, what, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", what, path, err)
	}
	return data, nil
}

func resolveAgainst(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
