// Package source parses uploaded CSV and XLSX files into core tables.
//
// The first record is the header. Cell types are inferred per column, the
// way spreadsheet-oriented readers do it: a column is an integer column only
// if every non-empty cell is an integer, numeric only if every non-empty
// cell is a number, boolean only if every non-empty cell is true/false, and
// text otherwise. Common missing-value markers ("", "NA", "NULL", "nan",
// ...) become NULL in every column.
//
// Every failure is reported as a *core.SourceReadError.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

// Format identifies a supported file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options tunes parsing.
type Options struct {
	// Sheet selects the XLSX worksheet. Empty means the first sheet.
	Sheet string
	// FloatNumbers stores non-integer numeric columns as float64 instead of
	// exact decimals.
	FloatNumbers bool
	// Comma overrides the CSV field delimiter. Zero means ','.
	Comma rune
}

// DetectFormat picks the parser from the file extension. Anything that is
// not .xlsx/.xlsm is read as CSV.
func DetectFormat(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Load parses r according to fileName's extension.
func Load(r io.Reader, fileName string, opts Options) (*core.Table, error) {
	var (
		header  []string
		records [][]string
		times   map[cellPos]time.Time
		err     error
	)

	switch DetectFormat(fileName) {
	case FormatXLSX:
		header, records, times, err = readXLSX(r, opts.Sheet)
	default:
		header, records, err = readCSV(r, opts.Comma)
	}
	if err != nil {
		return nil, &core.SourceReadError{Source: fileName, Err: err}
	}

	t, err := buildTable(header, records, times, opts)
	if err != nil {
		return nil, &core.SourceReadError{Source: fileName, Err: err}
	}
	return t, nil
}

// Loader adapts Load to core.LoadFunc with fixed options.
func Loader(opts Options) core.LoadFunc {
	return func(r io.Reader, fileName string) (*core.Table, error) {
		return Load(r, fileName, opts)
	}
}

// cellPos addresses a cell by data row and column, both zero-based.
type cellPos struct {
	row, col int
}

// buildTable normalizes the header, infers column kinds and converts cells.
// A column whose every present cell is in times becomes a timestamp column.
func buildTable(header []string, records [][]string, times map[cellPos]time.Time, opts Options) (*core.Table, error) {
	if len(header) == 0 {
		return nil, core.ErrEmptySource
	}
	columns := normalizeHeader(header)

	for i, rec := range records {
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("data row %d: expected %d fields, saw %d", i+1, len(columns), len(rec))
		}
	}

	kinds := make([]columnKind, len(columns))
	for j := range columns {
		if allTimes(records, times, j) {
			kinds[j] = colTime
			continue
		}
		kinds[j] = inferColumn(records, j, opts.FloatNumbers)
	}

	values := make([][]core.Value, len(records))
	for i, rec := range records {
		row := make([]core.Value, len(rec))
		for j, cell := range rec {
			if at, ok := times[cellPos{row: i, col: j}]; ok && kinds[j] == colTime {
				row[j] = core.Other(at)
				continue
			}
			row[j] = convertCell(cell, kinds[j])
		}
		values[i] = row
	}

	return core.NewTable(columns, values)
}

// normalizeHeader names blank header cells "Unnamed: <index>" and suffixes
// repeated names with ".1", ".2", ... so every column is addressable.
func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[sanitize(h)] = true
	}

	for i, h := range header {
		name := sanitize(h)
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if !taken[name] {
					break
				}
			}
			seen[base] = n
		} else {
			seen[name] = 0
		}
		taken[name] = true
		cols[i] = name
	}
	return cols
}
