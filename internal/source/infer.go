package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/shopspring/decimal"
)

// columnKind is the inferred type shared by all cells of a column.
type columnKind int

const (
	colEmpty columnKind = iota // every cell missing
	colInt
	colDecimal
	colFloat
	colBool
	colText
	colTime // workbook date cells only
)

// missingMarkers are cell texts read as NULL in every column.
var missingMarkers = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

func isMissing(cell string) bool {
	return missingMarkers[cell]
}

// inferColumn returns the narrowest kind that fits every non-missing cell
// of column j. Records shorter than j+1 count as missing.
func inferColumn(records [][]string, j int, floatNumbers bool) columnKind {
	allInt, allNum, allBool := true, true, true
	seen := false

	for _, rec := range records {
		if j >= len(rec) || isMissing(rec[j]) {
			continue
		}
		seen = true
		cell := strings.TrimSpace(rec[j])

		if allInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				allInt = false
			}
		}
		if allNum && !allInt {
			if !isNumber(cell) {
				allNum = false
			}
		}
		if allBool {
			if _, ok := parseBool(cell); !ok {
				allBool = false
			}
		}
		if !allInt && !allNum && !allBool {
			return colText
		}
	}

	switch {
	case !seen:
		return colEmpty
	case allInt:
		return colInt
	case allNum && floatNumbers:
		return colFloat
	case allNum:
		return colDecimal
	case allBool:
		return colBool
	default:
		return colText
	}
}

// allTimes reports whether column j has at least one present cell and every
// present cell is a workbook date.
func allTimes(records [][]string, times map[cellPos]time.Time, j int) bool {
	if len(times) == 0 {
		return false
	}
	seen := false
	for i, rec := range records {
		if j >= len(rec) || isMissing(rec[j]) {
			continue
		}
		if _, ok := times[cellPos{row: i, col: j}]; !ok {
			return false
		}
		seen = true
	}
	return seen
}

// isNumber accepts plain decimal and scientific notation. Thousands
// separators, currency signs and inf/nan spellings are text.
func isNumber(s string) bool {
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	lower := strings.ToLower(s)
	return !strings.Contains(lower, "inf") && !strings.Contains(lower, "nan") &&
		!strings.HasPrefix(lower, "0x") && !strings.Contains(s, "_")
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// convertCell turns one cell into a value of the column's kind. Text
// columns keep the cell verbatim, including surrounding whitespace.
func convertCell(cell string, kind columnKind) core.Value {
	if isMissing(cell) {
		return core.Null()
	}
	trimmed := strings.TrimSpace(cell)

	switch kind {
	case colInt:
		i, err := strconv.ParseInt(trimmed, 10, 64)
		if err == nil {
			return core.Int(i)
		}
	case colDecimal:
		d, err := decimal.NewFromString(trimmed)
		if err == nil {
			return core.Decimal(d)
		}
	case colFloat:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err == nil {
			return core.Float(f)
		}
	case colBool:
		if b, ok := parseBool(trimmed); ok {
			return core.Other(b)
		}
	}
	return core.Text(cell)
}
