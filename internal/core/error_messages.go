package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// Codes by category:
//
//	VAL004  requested column missing from the source file
//	VAL007  table name, column list, mode or batch size rejected
//	FILE001 file exceeds the upload size limit
//	FILE002 source file could not be read as CSV/XLSX
//	FILE004 no file selected
//	FILE005 file has no header row
//	FILE006 generated script not found
//	UPL002  conversion slots exhausted
//	UPL004  request cancelled
//	UPL005  request timed out
//	DB004   script database unreachable
//	RATE001 too many requests
//	ERR000  anything else
//
// Typed errors (MissingColumnsError, SourceReadError, option sentinels) are
// resolved with errors.Is/As first. Everything else falls back to
// case-insensitive substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var (
	msgMissingColumns = UserMessage{
		Message: "Some requested columns are not in the file",
		Action:  "Check the column names against the file header (names are case-sensitive)",
		Code:    "VAL004",
	}
	msgInvalidOptions = UserMessage{
		Message: "The conversion options are invalid",
		Action:  "Provide a table name, at least one column, a mode of plain or guarded, and a batch size of 1 or more",
		Code:    "VAL007",
	}
	msgSourceRead = UserMessage{
		Message: "The file could not be read",
		Action:  "Upload a comma-separated CSV or an XLSX workbook with a header row",
		Code:    "FILE002",
	}
	msgNotFound = UserMessage{
		Message: "Script not found",
		Action:  "Generate the script again",
		Code:    "FILE006",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other conversions",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that reach the user without a typed cause,
// for example a request body cut off by http.MaxBytesReader.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the script database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000). The technical
// error is in the server log.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-facing message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var mce *MissingColumnsError
	if errors.As(err, &mce) {
		msg := msgMissingColumns
		msg.Message = fmt.Sprintf("%s: %s", msg.Message, strings.Join(mce.Missing, ", "))
		return msg
	}

	var sre *SourceReadError
	if errors.As(err, &sre) {
		msg := msgSourceRead
		if errors.Is(sre.Err, ErrEmptySource) {
			msg.Message = "The uploaded file is empty"
			msg.Code = "FILE005"
		}
		return msg
	}

	switch {
	case errors.Is(err, ErrNoTableName), errors.Is(err, ErrNoColumns),
		errors.Is(err, ErrInvalidBatchSize), errors.Is(err, ErrInvalidMode):
		msg := msgInvalidOptions
		msg.Message = fmt.Sprintf("%s: %v", msg.Message, rootCause(err))
		return msg
	case errors.Is(err, ErrArtifactNotFound):
		return msgNotFound
	case errors.Is(err, ErrTooManyConversions):
		return msgBusy
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// rootCause returns the first sentinel in err's chain that the option
// messages know how to describe.
func rootCause(err error) error {
	for _, s := range []error{ErrNoTableName, ErrNoColumns, ErrInvalidBatchSize, ErrInvalidMode} {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}
