package extract

import (
	"bytes"
	"context"
	"strings"

	"code.sajari.com/docconv"
)

// OfficeExtractor converts OOXML documents with docconv.
type OfficeExtractor struct {
	mimeType string
	stage    string
}

var _ Extractor = (*OfficeExtractor)(nil)

// NewOfficeExtractor creates an extractor for one docconv-supported MIME type.
func NewOfficeExtractor(mimeType, stage string) *OfficeExtractor {
	return &OfficeExtractor{mimeType: mimeType, stage: stage}
}

// Stage returns the progress message.
func (o *OfficeExtractor) Stage() string {
	return o.stage
}

// Extract converts data. Document properties reported by docconv are kept
// in the metadata under a "meta." prefix.
func (o *OfficeExtractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	res, err := docconv.Convert(bytes.NewReader(data), o.mimeType, false)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(res.Body)
	meta := textStats(text)
	for k, v := range res.Meta {
		meta["meta."+k] = v
	}
	return &Extraction{Text: text, Metadata: meta}, nil
}
