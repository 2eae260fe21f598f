package core

import (
	"errors"
	"fmt"
	"strings"
)

// Option errors returned by the generator before any statement is produced.
var (
	ErrNoTableName      = errors.New("table name is required")
	ErrNoColumns        = errors.New("at least one column is required")
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
	ErrInvalidMode      = errors.New("invalid generation mode: must be plain or guarded")
)

// ErrEmptySource is wrapped in a SourceReadError when the input has no
// header row.
var ErrEmptySource = errors.New("empty file")

// ErrArtifactNotFound is returned by script stores for unknown artifact names.
var ErrArtifactNotFound = errors.New("script not found")

// MissingColumnsError reports requested columns that are absent from the
// source table. Missing keeps the request order.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// SourceReadError reports a tabular source that could not be parsed.
type SourceReadError struct {
	Source string // file name or description of the input
	Err    error
}

func (e *SourceReadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("unreadable source file: %v", e.Err)
	}
	return fmt.Sprintf("unreadable source file %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// IsMissingColumns reports whether err is or wraps a *MissingColumnsError.
func IsMissingColumns(err error) bool {
	var mce *MissingColumnsError
	return errors.As(err, &mce)
}

// IsSourceRead reports whether err is or wraps a *SourceReadError.
func IsSourceRead(err error) bool {
	var sre *SourceReadError
	return errors.As(err, &sre)
}
