// Package manifest records the content hash and provenance of every source
// document before extraction.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coolbeans/reqlib/pkg/config"
	"github.com/coolbeans/reqlib/pkg/eurlex"
	"github.com/coolbeans/reqlib/pkg/library"
)

// ErrNoManifestEntry is returned when a source file has no manifest entry.
var ErrNoManifestEntry = errors.New("no manifest entry")

// Columns is the header of the manifest CSV.
var Columns = []string{
	"instrument_code",
	"title",
	"lang",
	"file_path",
	"sha256",
	"source_url",
	"retrieved_at_utc",
	"celex",
}

// Entry describes one source document.
type Entry struct {
	InstrumentCode string `json:"instrument_code"`
	Title          string `json:"title"`
	Lang           string `json:"lang"`
	FilePath       string `json:"file_path"`
	SHA256         string `json:"sha256"`
	SourceURL      string `json:"source_url"`
	RetrievedAtUTC string `json:"retrieved_at_utc"`
	CELEX          string `json:"celex"`
}

// Manifest is the ordered list of source entries.
type Manifest struct {
	Entries []Entry
}

// HashFile returns the hex SHA-256 of a file, read in a streaming fashion.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: source %s", config.ErrMissingInput, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Build hashes every configured source in config order. A missing source is
// fatal. Versions without a retrieval time are stamped with now.
func Build(ctx context.Context, instruments *config.Instruments, now time.Time) (*Manifest, error) {
	stamp := now.UTC().Format(time.RFC3339)
	m := &Manifest{}

	for _, instrument := range instruments.Instruments {
		celex := ""
		if number, _, err := eurlex.Resolve(instrument.Code, instrument.CELEX); err == nil {
			celex = number.String()
		}

		for _, version := range instrument.Versions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sum, err := HashFile(version.Path)
			if err != nil {
				return nil, err
			}

			retrieved := version.RetrievedAtUTC
			if retrieved == "" {
				retrieved = stamp
			}
			m.Entries = append(m.Entries, Entry{
				InstrumentCode: instrument.Code,
				Title:          instrument.Title,
				Lang:           version.Lang,
				FilePath:       version.Path,
				SHA256:         sum,
				SourceURL:      version.SourceURL,
				RetrievedAtUTC: retrieved,
				CELEX:          celex,
			})
		}
	}
	return m, nil
}

// Write saves the manifest as CSV, replacing path atomically.
func (m *Manifest) Write(path string) error {
	return library.WriteAtomic(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(Columns); err != nil {
			return err
		}
		for _, e := range m.Entries {
			record := []string{e.InstrumentCode, e.Title, e.Lang, e.FilePath, e.SHA256, e.SourceURL, e.RetrievedAtUTC, e.CELEX}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// Load reads a manifest CSV. Columns are matched by header name; manifests
// written before the celex column existed load with an empty CELEX.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: manifest %s", config.ErrMissingInput, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("manifest %s has no header", path)
	}

	index := make(map[string]int, len(records[0]))
	for i, column := range records[0] {
		index[strings.TrimSpace(column)] = i
	}
	for _, required := range []string{"instrument_code", "lang", "file_path", "sha256"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("manifest %s lacks column %s", path, required)
		}
	}
	field := func(record []string, column string) string {
		if i, ok := index[column]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	m := &Manifest{}
	for _, record := range records[1:] {
		m.Entries = append(m.Entries, Entry{
			InstrumentCode: field(record, "instrument_code"),
			Title:          field(record, "title"),
			Lang:           field(record, "lang"),
			FilePath:       field(record, "file_path"),
			SHA256:         field(record, "sha256"),
			SourceURL:      field(record, "source_url"),
			RetrievedAtUTC: field(record, "retrieved_at_utc"),
			CELEX:          field(record, "celex"),
		})
	}
	return m, nil
}

// HashForPath returns the recorded hash of a source file.
func (m *Manifest) HashForPath(path string) (string, error) {
	want := cleanPath(path)
	for _, e := range m.Entries {
		if cleanPath(e.FilePath) == want {
			return e.SHA256, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoManifestEntry, path)
}

// Lookup returns the entry of an instrument's language version.
func (m *Manifest) Lookup(instrumentCode, lang string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.InstrumentCode == instrumentCode && strings.EqualFold(e.Lang, lang) {
			return e, true
		}
	}
	return Entry{}, false
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
