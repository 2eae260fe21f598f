package source

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/xuri/excelize/v2"
)

// readXLSX returns the header and data rows of one worksheet. Cells are read
// as their stored values, not their displayed text, so number formats never
// leak into the data. Numeric cells styled as dates are returned as
// timestamps in times, keyed by data row and column, and as their
// core.TimestampLayout text in the records. Trailing empty cells are omitted
// by excelize and later padded with NULL.
func readXLSX(r io.Reader, sheet string) ([]string, [][]string, map[cellPos]time.Time, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, nil, core.ErrEmptySource
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil, nil, fmt.Errorf("worksheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read worksheet %q: %w", sheet, err)
	}

	// Leading blank rows are skipped, like blank lines in a CSV file.
	start := 0
	for start < len(rows) && isBlankRecord(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, nil, nil, core.ErrEmptySource
	}

	cells := newCellTyper(f, sheet)
	header := sanitizeAll(rows[start])
	records := make([][]string, 0, len(rows)-start-1)
	times := make(map[cellPos]time.Time)

	for i := start + 1; i < len(rows); i++ {
		if isBlankRecord(rows[i]) {
			continue
		}
		rec := sanitizeAll(rows[i])
		for j, raw := range rec {
			if raw == "" {
				continue
			}
			// GetRows numbers rows and columns from the top-left cell A1.
			text, at, isTime, err := cells.typed(j+1, i+1, raw)
			if err != nil {
				return nil, nil, nil, err
			}
			rec[j] = text
			if isTime {
				times[cellPos{row: len(records), col: j}] = at
			}
		}
		records = append(records, rec)
	}
	return header, records, times, nil
}

// cellTyper restores the types a raw cell value loses: booleans are stored
// as 1/0 and dates as serial day numbers.
type cellTyper struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func newCellTyper(f *excelize.File, sheet string) *cellTyper {
	c := &cellTyper{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		c.date1904 = *props.Date1904
	}
	return c
}

func (c *cellTyper) typed(col, row int, raw string) (string, time.Time, bool, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", time.Time{}, false, err
	}
	typ, err := c.f.GetCellType(c.sheet, ref)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("cell %s: %w", ref, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		if raw == "1" {
			return "TRUE", time.Time{}, false, nil
		}
		return "FALSE", time.Time{}, false, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		isDate, err := c.isDateStyled(ref)
		if err != nil {
			return "", time.Time{}, false, err
		}
		if !isDate {
			return raw, time.Time{}, false, nil
		}
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, time.Time{}, false, nil
		}
		at, err := excelize.ExcelDateToTime(serial, c.date1904)
		if err != nil {
			return raw, time.Time{}, false, nil
		}
		return at.Format(core.TimestampLayout), at, true, nil
	default:
		return raw, time.Time{}, false, nil
	}
}

func (c *cellTyper) isDateStyled(ref string) (bool, error) {
	id, err := c.f.GetCellStyle(c.sheet, ref)
	if err != nil {
		return false, fmt.Errorf("cell %s style: %w", ref, err)
	}
	if isDate, ok := c.dateStyles[id]; ok {
		return isDate, nil
	}

	isDate := false
	if id != 0 {
		style, err := c.f.GetStyle(id)
		if err != nil {
			return false, fmt.Errorf("style %d: %w", id, err)
		}
		isDate = isBuiltinDateFormat(style.NumFmt) ||
			(style.CustomNumFmt != nil && isDateFormat(*style.CustomNumFmt))
	}
	c.dateStyles[id] = isDate
	return isDate, nil
}

// isBuiltinDateFormat reports the built-in number format IDs that show
// dates or times, including the East Asian ones.
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

// isDateFormat reports whether a custom number format code contains date or
// time tokens outside quoted literals, escapes and bracketed modifiers.
// Elapsed-time brackets such as [h] count as time.
func isDateFormat(code string) bool {
	inQuote := false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '\\', ch == '_', ch == '*':
			i++
		case ch == '[':
			end := strings.IndexByte(code[i:], ']')
			if end < 0 {
				return false
			}
			switch strings.ToLower(code[i+1 : i+end]) {
			case "h", "hh", "m", "mm", "s", "ss":
				return true
			}
			i += end
		default:
			switch ch | 0x20 {
			case 'y', 'd', 'h', 'm', 's':
				return true
			}
		}
	}
	return false
}
