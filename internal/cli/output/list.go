package output

import (
	"fmt"
	"io"
)

// Column maps an entry field to a table header.
type Column struct {
	Field  string
	Header string
}

// Columns of the list commands.
var (
	NamespaceColumns = []Column{{"name", "Name"}, {"active", "Active"}}
	KeyColumns       = []Column{{"name", "Name"}, {"type", "Type"}, {"active", "Active"}}
	SecretColumns    = []Column{{"name", "Name"}, {"active", "Active"}}
)

// ListOptions controls RenderList.
type ListOptions struct {
	Format  Format
	Columns []Column
	// All keeps inactive entries.
	All bool
}

// RenderList prints the entries of a list response. Inactive entries are
// dropped unless opts.All is set. In table format the table is followed by
// "<n> items", where n counts every entry the server returned.
func RenderList(w io.Writer, data any, opts ListOptions) error {
	entries, err := toEntries(data)
	if err != nil {
		return err
	}

	shown := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if opts.All || e["active"] == true {
			shown = append(shown, e)
		}
	}

	if opts.Format == FormatJSON || opts.Format == FormatYAML {
		return NewFormatter(opts.Format).Format(w, project(shown, opts.Columns))
	}

	t := &Table{Underline: true}
	for _, c := range opts.Columns {
		t.Headers = append(t.Headers, c.Header)
	}
	for _, e := range shown {
		row := make([]string, len(opts.Columns))
		for i, c := range opts.Columns {
			row[i] = formatCell(e[c.Field])
		}
		t.AddRow(row...)
	}

	if err := t.Render(w); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d items\n", len(entries))
	return err
}

// project keeps only the listed fields, so encoders see a stable shape.
func project(entries []map[string]any, columns []Column) []map[string]any {
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		row := make(map[string]any, len(columns))
		for _, c := range columns {
			row[c.Field] = e[c.Field]
		}
		out[i] = row
	}
	return out
}

func toEntries(data any) ([]map[string]any, error) {
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("list response holds %T, want a list", data)
	}
	entries := make([]map[string]any, len(items))
	for i, item := range items {
		e, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("list entry %d holds %T, want an object", i, item)
		}
		entries[i] = e
	}
	return entries, nil
}
