package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"
)

// TableFormatter formats a *Table or Table.
type TableFormatter struct {
	Underline bool
	NoHeaders bool
}

// Format renders data, which must be a Table.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	var t *Table
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		t = v
	case Table:
		t = &v
	default:
		return fmt.Errorf("table output needs a table, got %T", data)
	}

	t.Underline = t.Underline || f.Underline
	return t.RenderWithOptions(w, f.NoHeaders)
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
	// Underline prints a dashed rule under the headers.
	Underline bool
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without headers.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		writeRow(tw, t.Headers)
		if t.Underline {
			writeRow(tw, t.rule())
		}
	}

	for _, row := range t.Rows {
		writeRow(tw, row)
	}

	return tw.Flush()
}

// rule returns one dash run per column, as wide as the column.
func (t *Table) rule() []string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	return rule
}

func writeRow(w io.Writer, cells []string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}

// formatCell formats one list value for display.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []byte:
		return fmt.Sprintf("[%d bytes]", len(x))
	default:
		return fmt.Sprint(x)
	}
}
