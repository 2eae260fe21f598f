package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV returns the header and data records of a delimited file.
// A UTF-8 BOM is dropped, invalid UTF-8 is replaced cell by cell, rows of
// only empty fields are skipped, and fields per record may vary.
func readCSV(r io.Reader, comma rune) ([]string, [][]string, error) {
	br := bufio.NewReader(r)
	if err := skipBOM(br); err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if comma != 0 {
		cr.Comma = comma
	}

	var (
		header  []string
		records [][]string
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		if header == nil {
			header = sanitizeAll(rec)
			continue
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, sanitizeAll(rec))
	}

	if header == nil {
		return nil, nil, core.ErrEmptySource
	}
	return header, records, nil
}

// skipBOM consumes a leading UTF-8 byte order mark if there is one.
func skipBOM(br *bufio.Reader) error {
	head, err := br.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read input: %w", err)
	}
	if bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return nil
}

// sanitize replaces invalid UTF-8 sequences with U+FFFD.
func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func sanitizeAll(rec []string) []string {
	for i, c := range rec {
		rec[i] = sanitize(c)
	}
	return rec
}

// isBlankRecord reports a line with no content, such as ",,," or a line
// the reader returned as a single empty field.
func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}
