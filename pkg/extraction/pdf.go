package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"resumetailor-hq/tailor/pkg/objectstore"
)

// PDFExtractor reads the text layer of PDFs fetched from an object store.
// Scanned documents without a text layer yield ErrNoText.
type PDFExtractor struct {
	store objectstore.Store
}

// NewPDFExtractor creates a PDFExtractor. The bucket argument of
// ExtractLines is ignored; documents are read from store.
func NewPDFExtractor(store objectstore.Store) *PDFExtractor {
	return &PDFExtractor{store: store}
}

// ExtractLines returns the non-blank lines of every page.
func (e *PDFExtractor) ExtractLines(ctx context.Context, _ string, key string) ([]string, error) {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return ParsePDF(ctx, data)
}

// ParsePDF extracts text lines from PDF bytes.
func ParsePDF(ctx context.Context, data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extraction: parse pdf: %w", err)
	}

	var lines []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extraction: read page %d: %w", pageNum, err)
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}
