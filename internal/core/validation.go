package core

// validation.go checks a requested column projection against a table.
//
// Project is the only validation step in the conversion pipeline: it fails
// with a *MissingColumnsError when any requested column is absent, and
// otherwise returns a new table restricted to the requested columns in the
// requested order. Values of other columns are dropped, not hidden.

import "strings"

// Project validates that every requested column exists in t and returns a
// table containing exactly those columns, in the requested order.
// Duplicated names are allowed and yield duplicated values.
func Project(t *Table, columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	if missing := MissingColumns(t.Columns, columns); len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	out := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, src := range t.Rows {
		row := make(Row, len(columns))
		for _, c := range columns {
			row[c] = src[c]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// MissingColumns returns the requested names that are not in available,
// in request order and without repeats.
func MissingColumns(available, requested []string) []string {
	have := make(map[string]bool, len(available))
	for _, c := range available {
		have[c] = true
	}

	var missing []string
	reported := make(map[string]bool)
	for _, c := range requested {
		if !have[c] && !reported[c] {
			missing = append(missing, c)
			reported[c] = true
		}
	}
	return missing
}

// ParseColumns splits a comma-separated column list as typed into a form,
// trimming whitespace and dropping empty entries.
func ParseColumns(s string) []string {
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}
