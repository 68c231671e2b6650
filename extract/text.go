package extract

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor reads UTF-8 text, falling back to ISO-8859-1.
type TextExtractor struct {
	stage string
}

var _ Extractor = (*TextExtractor)(nil)

// NewTextExtractor creates a TextExtractor reporting stage while it runs.
func NewTextExtractor(stage string) *TextExtractor {
	return &TextExtractor{stage: stage}
}

// Stage returns the progress message.
func (t *TextExtractor) Stage() string {
	return t.stage
}

// Extract decodes data.
func (t *TextExtractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	text, encoding, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	meta := textStats(text)
	meta["lines"] = strconv.Itoa(countLines(text))
	meta["encoding"] = encoding
	return &Extraction{Text: text, Metadata: meta}, nil
}

// decodeText returns data as a string and the name of the encoding used.
func decodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", err
	}
	return string(decoded), "iso-8859-1", nil
}

// countLines counts lines the way Python's str.splitlines does: every line
// boundary ends a line and a trailing boundary does not start a new one.
func countLines(text string) int {
	lines := 0
	pending := false
	for i, r := range text {
		switch r {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			fallthrough
		case '\n', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			lines++
			pending = false
		default:
			pending = true
		}
	}
	if pending {
		lines++
	}
	return lines
}

// textStats returns word and character counts.
func textStats(text string) map[string]string {
	return map[string]string{
		"words": strconv.Itoa(len(strings.Fields(text))),
		"chars": strconv.Itoa(utf8.RuneCountInString(text)),
	}
}
