// Package convert turns uploaded documents into normalized plain text.
// PDF parsing is delegated to github.com/ledongthuc/pdf; this package only
// cares about getting UTF-8 text out of a readable file path.
package convert

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Converter extracts plain text from a document on disk. Implementations
// must be safe to call from multiple goroutines.
type Converter interface {
	// Convert reads the document at path and returns its plain text.
	Convert(ctx context.Context, path string) (string, error)
}

// PDFConverter is a Converter for PDF files.
type PDFConverter struct{}

// NewPDFConverter constructs a PDFConverter.
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

// Convert extracts the plain text of every parseable page, joined by blank
// lines. Pages that fail to parse are skipped rather than failing the whole
// document; a PDF that yields no text at all is an error.
func (c *PDFConverter) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("convert: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("convert: stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("convert: parse %s: %w", path, err)
	}

	var content strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // unparseable page, keep going
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(text)
	}

	if content.Len() == 0 {
		return "", fmt.Errorf("convert: no extractable text in %s (%d pages)", path, pages)
	}
	return content.String(), nil
}
