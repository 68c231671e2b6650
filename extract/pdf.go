package extract

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

// PDFExtractor concatenates page text in page order.
type PDFExtractor struct{}

var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Stage returns the progress message.
func (p *PDFExtractor) Stage() string {
	return "Extracting text from PDF"
}

// Extract loads every page. A document without pages is an error.
func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	pages, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	var sb strings.Builder
	for i, page := range pages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(page.PageContent)
	}
	text := strings.TrimSpace(sb.String())

	meta := textStats(text)
	meta["pages"] = strconv.Itoa(len(pages))
	return &Extraction{Text: text, Metadata: meta}, nil
}
