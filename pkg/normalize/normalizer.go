package normalize

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// Normalizer turns source files into normalized text.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeFile reads path and normalizes it according to its extension.
func (n *Normalizer) NormalizeFile(path string) (string, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, err := n.Normalize(data, format)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// Normalize converts data of the given format to normalized text. The
// content is sniffed first so a mislabeled file fails instead of yielding
// garbage.
func (n *Normalizer) Normalize(data []byte, format Format) (string, error) {
	detected := mimetype.Detect(data)

	switch format {
	case FormatPDF:
		if !detected.Is("application/pdf") {
			return "", fmt.Errorf("content is %s, not application/pdf", detected.String())
		}
		return PDFText(data)
	case FormatHTML:
		if detected.Is("application/pdf") {
			return "", fmt.Errorf("content is application/pdf, not markup")
		}
		return HTMLText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
