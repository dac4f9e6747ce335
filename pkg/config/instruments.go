package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version is one language version of an instrument.
type Version struct {
	Lang           string `yaml:"lang" validate:"required"`
	Path           string `yaml:"path" validate:"required"`
	SourceURL      string `yaml:"source_url,omitempty"`
	RetrievedAtUTC string `yaml:"retrieved_at_utc,omitempty"`
}

// Instrument is a legal instrument and its segmentation policy.
type Instrument struct {
	Code                  string      `yaml:"code" validate:"required"`
	Title                 string      `yaml:"title"`
	CELEX                 string      `yaml:"celex,omitempty"`
	MaxArticle            int         `yaml:"max_article,omitempty" validate:"gte=0"`
	IncludeArticles       []int       `yaml:"include_articles,omitempty" validate:"dive,gte=1"`
	ExpectedMinParagraphs map[int]int `yaml:"expected_min_paragraphs,omitempty"`
	Granularity           string      `yaml:"granularity,omitempty" validate:"omitempty,oneof=paragraph point"`
	Versions              []Version   `yaml:"versions" validate:"required,min=1,dive"`
}

// Version returns the instrument's version in lang.
func (i Instrument) Version(lang string) (Version, bool) {
	for _, v := range i.Versions {
		if strings.EqualFold(v.Lang, lang) {
			return v, true
		}
	}
	return Version{}, false
}

// Instruments is the instruments file.
type Instruments struct {
	Instruments []Instrument `yaml:"instruments" validate:"required,min=1,dive"`
}

// Find returns the instrument with the given code.
func (in *Instruments) Find(code string) (Instrument, bool) {
	for _, instrument := range in.Instruments {
		if strings.EqualFold(instrument.Code, code) {
			return instrument, true
		}
	}
	return Instrument{}, false
}

// LoadInstruments reads an instruments file. Version paths resolve against
// the file's directory.
func LoadInstruments(path string) (*Instruments, error) {
	data, err := readInput(path, "instruments file")
	if err != nil {
		return nil, err
	}

	var instruments Instruments
	if err := yaml.Unmarshal(data, &instruments); err != nil {
		return nil, fmt.Errorf("failed to parse instruments file %s: %w", path, err)
	}
	if err := instruments.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instruments file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range instruments.Instruments {
		for j := range instruments.Instruments[i].Versions {
			version := &instruments.Instruments[i].Versions[j]
			version.Path = resolveAgainst(dir, version.Path)
		}
	}
	return &instruments, nil
}

// Validate checks field constraints and rejects repeated instrument codes
// or repeated languages within one instrument.
func (in *Instruments) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	codes := make(map[string]bool, len(in.Instruments))
	for _, instrument := range in.Instruments {
		if codes[instrument.Code] {
			return fmt.Errorf("duplicate instrument code %s", instrument.Code)
		}
		codes[instrument.Code] = true

		langs := make(map[string]bool, len(instrument.Versions))
		for _, v := range instrument.Versions {
			lang := strings.ToLower(v.Lang)
			if langs[lang] {
				return fmt.Errorf("instrument %s lists lang %s twice", instrument.Code, v.Lang)
			}
			langs[lang] = true
		}
	}
	return nil
}

// Langs returns the sorted set of languages across all instruments.
func (in *Instruments) Langs() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, instrument := range in.Instruments {
		for _, v := range instrument.Versions {
			lang := strings.ToLower(v.Lang)
			if !seen[lang] {
				seen[lang] = true
				langs = append(langs, lang)
			}
		}
	}
	sort.Strings(langs)
	return langs
}

// CELEX returns the explicit CELEX numbers keyed by instrument code.
func (in *Instruments) CELEX() map[string]string {
	out := make(map[string]string)
	for _, instrument := range in.Instruments {
		if instrument.CELEX != "" {
			out[instrument.Code] = instrument.CELEX
		}
	}
	return out
}
