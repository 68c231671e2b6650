package extract

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// sampleRows is the number of rows shown in a summary.
const sampleRows = 5

type columnStats struct {
	integer  bool
	numeric  bool
	seen     int
	min, max float64
	sum      float64
}

func (c *columnStats) observe(cell string) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return
	}
	c.seen++
	if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
		c.integer = false
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		c.numeric = false
		return
	}
	if c.seen == 1 {
		c.min, c.max = f, f
	}
	c.min = min(c.min, f)
	c.max = max(c.max, f)
	c.sum += f
}

func (c *columnStats) kind() string {
	switch {
	case c.seen == 0:
		return "empty"
	case c.integer:
		return "integer"
	case c.numeric:
		return "float"
	}
	return "string"
}

// table accumulates the summary of one header plus data rows.
type table struct {
	header []string
	stats  []*columnStats
	sample [][]string
	rows   int
}

func newTable(header []string) *table {
	t := &table{header: header, stats: make([]*columnStats, len(header))}
	for i := range t.stats {
		t.stats[i] = &columnStats{integer: true, numeric: true}
	}
	return t
}

func (t *table) add(record []string) {
	t.rows++
	if len(t.sample) < sampleRows {
		t.sample = append(t.sample, record)
	}
	for i := range t.stats {
		if i < len(record) {
			t.stats[i].observe(record[i])
		}
	}
}

func (t *table) types() []string {
	types := make([]string, len(t.stats))
	for i, s := range t.stats {
		types[i] = s.kind()
	}
	return types
}

// render writes the column list, sample rows and numeric statistics, each
// line prefixed with indent.
func (t *table) render(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%sColumns: %s\n", indent, strings.Join(t.header, ", "))

	if len(t.sample) > 0 {
		fmt.Fprintf(sb, "\n%sSample data:\n", indent)
		tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s%s\n", indent, strings.Join(t.header, "\t"))
		for _, record := range t.sample {
			fmt.Fprintf(tw, "%s%s\n", indent, strings.Join(record, "\t"))
		}
		tw.Flush()
	}

	var numeric bytes.Buffer
	for i, s := range t.stats {
		if s.seen > 0 && s.numeric {
			fmt.Fprintf(&numeric, "%s%s: min=%s, max=%s, mean=%s\n", indent, t.header[i],
				formatNumber(s.min), formatNumber(s.max), formatNumber(s.sum/float64(s.seen)))
		}
	}
	if numeric.Len() > 0 {
		fmt.Fprintf(sb, "\n%sNumeric column statistics:\n", indent)
		sb.Write(numeric.Bytes())
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
