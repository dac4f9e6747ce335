// Package normalize converts PDF and HTML source documents into the single
// normalized plaintext string the segmenters operate on.
package normalize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Format identifies a supported source file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ErrUnsupportedFormat is returned for files outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported source format")

var (
	hyphenBreakPattern     = regexp.MustCompile(`-\n`)
	horizontalSpacePattern = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	spaceAroundLinePattern = regexp.MustCompile(` ?\n ?`)
	newlineRunPattern      = regexp.MustCompile(`\n+`)
)

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// NormalizeText removes layout artifacts from extracted text:
//   - line endings become \n
//   - soft hyphens are removed and hyphenated line wraps joined
//   - horizontal whitespace (including NBSP) collapses to one space
//   - blank lines collapse so every line holds content
//
// The result is NFC-normalized and trimmed. NormalizeText is idempotent.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u00ad", "")
	s = horizontalSpacePattern.ReplaceAllString(s, " ")
	s = spaceAroundLinePattern.ReplaceAllString(s, "\n")
	s = hyphenBreakPattern.ReplaceAllString(s, "")
	s = newlineRunPattern.ReplaceAllString(s, "\n")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}
