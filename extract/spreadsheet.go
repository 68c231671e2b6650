package extract

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Limits on the decompressed size of a workbook.
const (
	unzipSizeLimit    = 256 << 20
	unzipXMLSizeLimit = 64 << 20
)

// SpreadsheetExtractor summarizes every sheet of an OOXML workbook. The first
// row of a sheet is taken as its header.
type SpreadsheetExtractor struct {
	stage string
}

var _ Extractor = (*SpreadsheetExtractor)(nil)

// NewSpreadsheetExtractor creates a SpreadsheetExtractor reporting stage while it runs.
func NewSpreadsheetExtractor(stage string) *SpreadsheetExtractor {
	return &SpreadsheetExtractor{stage: stage}
}

// Stage returns the progress message.
func (s *SpreadsheetExtractor) Stage() string {
	return s.stage
}

// Extract opens the workbook and renders a per-sheet summary.
func (s *SpreadsheetExtractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{
		UnzipSizeLimit:    unzipSizeLimit,
		UnzipXMLSizeLimit: unzipXMLSizeLimit,
	})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Spreadsheet with %d sheets: %s\n", len(sheets), strings.Join(sheets, ", "))

	meta := map[string]string{
		"sheet_count": strconv.Itoa(len(sheets)),
		"sheet_names": strings.Join(sheets, ","),
	}
	total := 0
	for _, sheet := range sheets {
		table, err := readSheet(ctx, f, sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		total += table.rows

		fmt.Fprintf(&sb, "\nSheet: %s\n", sheet)
		fmt.Fprintf(&sb, "  Rows: %d, Columns: %d\n", table.rows, len(table.header))
		if len(table.header) > 0 {
			table.render(&sb, "  ")
		}

		prefix := "sheet." + sheet + "."
		meta[prefix+"rows"] = strconv.Itoa(table.rows)
		meta[prefix+"columns"] = strconv.Itoa(len(table.header))
		meta[prefix+"column_names"] = strings.Join(table.header, ",")
	}
	meta["rows"] = strconv.Itoa(total)

	return &Extraction{Text: strings.TrimSpace(sb.String()), Metadata: meta}, nil
}

func readSheet(ctx context.Context, f *excelize.File, sheet string) (*table, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var t *table
	for n := 0; rows.Next(); n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if t == nil {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
			t = newTable(record)
			continue
		}
		t.add(record)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	if t == nil {
		t = newTable(nil)
	}
	return t, nil
}
