package sqldb

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
)

// maxValueLength truncates long cell values in rendered output.
const maxValueLength = 100

// Result is a bounded query result.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// Len returns the number of rows held.
func (r *Result) Len() int { return len(r.Rows) }

// Records returns each row keyed by column name.
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			v := row[j]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[col] = v
		}
		out[i] = rec
	}
	return out
}

// String renders the result as a text table for the model or a terminal.
func (r *Result) String() string {
	if len(r.Rows) == 0 {
		return "Query returned no rows."
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(r.Columns)
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		table.Append(cells)
	}
	table.Render()

	if r.Truncated {
		sb.WriteString(fmt.Sprintf("(showing first %d rows; add a LIMIT or aggregate to narrow the result)\n", len(r.Rows)))
	}
	return sb.String()
}

// formatValue renders a scanned cell, truncating long text.
func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		if utf8.Valid(val) {
			s = string(val)
		} else {
			return fmt.Sprintf("<%d bytes>", len(val))
		}
	case string:
		s = val
	case time.Time:
		s = val.Format(time.RFC3339)
	case float64:
		s = fmt.Sprintf("%g", val)
	default:
		s = fmt.Sprintf("%v", val)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) > maxValueLength {
		runes := []rune(s)
		s = string(runes[:maxValueLength-3]) + "..."
	}
	return s
}
