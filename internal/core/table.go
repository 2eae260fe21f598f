package core

import (
	"errors"
	"fmt"
)

// Row maps a column name to its cell value.
type Row map[string]Value

// Table is an in-memory tabular source: ordered columns and ordered rows.
// Every row holds a value (possibly NULL) for every column. A Table must not
// be mutated once it is handed to the generator.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable builds a table from positional records. Each record is matched
// to columns by index; records shorter than the header are padded with NULL.
// Returns an error for empty or duplicate column names and for records that
// are longer than the header.
func NewTable(columns []string, records [][]Value) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.New("no columns in header")
	}

	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate header column %q", c)
		}
		seen[c] = true
	}

	t := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([]Row, 0, len(records)),
	}

	for i, rec := range records {
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("row %d: expected at most %d values, got %d", i+1, len(columns), len(rec))
		}
		row := make(Row, len(columns))
		for j, c := range columns {
			if j < len(rec) {
				row[c] = rec[j]
			} else {
				row[c] = Null()
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether the table declares the column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
