package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DelimitedExtractor summarizes CSV-like tables.
type DelimitedExtractor struct {
	comma rune
	stage string
}

var _ Extractor = (*DelimitedExtractor)(nil)

// NewDelimitedExtractor creates an extractor for tables separated by comma.
func NewDelimitedExtractor(comma rune, stage string) *DelimitedExtractor {
	return &DelimitedExtractor{comma: comma, stage: stage}
}

// Stage returns the progress message.
func (d *DelimitedExtractor) Stage() string {
	return d.stage
}

// Extract parses the table and renders a summary.
func (d *DelimitedExtractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	text, _, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = d.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := newTable(header)
	for rows := 0; ; rows++ {
		if rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		table.add(record)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table with %d columns and %d rows.\n", len(header), table.rows)
	table.render(&sb, "")

	return &Extraction{
		Text: strings.TrimSpace(sb.String()),
		Metadata: map[string]string{
			"rows":         strconv.Itoa(table.rows),
			"columns":      strconv.Itoa(len(header)),
			"column_names": strings.Join(header, ","),
			"column_types": strings.Join(table.types(), ","),
		},
	}, nil
}
