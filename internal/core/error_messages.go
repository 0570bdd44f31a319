package core

// error_messages.go turns technical errors into messages a person uploading
// files can act on. Every message carries a code that can be quoted back to
// whoever runs the service.
//
// # CSV Errors (CSV001-CSV099)
//
//	CSV001 - A file has no header row (tabular.ErrEmptyInput)
//	CSV002 - A row has more fields than the header (tabular.ErrMalformedRow)
//	CSV003 - A quoted field is never closed (tabular.ErrTruncatedInput)
//	CSV004 - Delimiter or quote settings are unusable (tabular.ErrInvalidDialect)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File exceeds the size limit (ErrFileTooLarge)
//	FILE002 - File is not a CSV file (ErrNotCSV)
//	FILE003 - File could not be read (ErrUnreadableFile)
//	FILE004 - No file was selected (ErrNoSources)
//	FILE005 - File is empty (ErrEmptyFile)
//
// # Merge Errors (MRG001-MRG099)
//
//	MRG001 - Unknown merge profile (ErrUnknownProfile)
//	MRG002 - Invalid merge settings (ErrInvalidOptions)
//	MRG003 - Too many files in one merge (ErrTooManyFiles)
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Request body too large (ErrRequestTooLarge)
//	UPL002 - Too many merges running (ErrTooBusy)
//	UPL003 - Upload form could not be parsed (ErrBadForm)
//	UPL004 - Request was cancelled (context.Canceled)
//	UPL005 - Request timed out (context.DeadlineExceeded)
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests ("rate limit")
//
// # Default Error (ERR000)
//
// Anything else. The original error is in the server log.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

// Errors produced by the service and its HTTP front end.
var (
	ErrNoSources       = errors.New("no file provided")
	ErrTooManyFiles    = errors.New("too many files")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNotCSV          = errors.New("not a csv file")
	ErrUnreadableFile  = errors.New("file could not be read")
	ErrEmptyFile       = errors.New("empty file")
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrInvalidOptions  = errors.New("invalid merge options")
	ErrRequestTooLarge = errors.New("request too large")
	ErrBadForm         = errors.New("invalid upload form")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorKinds is checked first, in order, with errors.Is.
var errorKinds = []struct {
	target error
	msg    UserMessage
}{
	{tabular.ErrEmptyInput, UserMessage{
		Message: "A file has no header row",
		Action:  "Make sure the first line of every file lists the column names",
		Code:    "CSV001",
	}},
	{tabular.ErrMalformedRow, UserMessage{
		Message: "A row has more fields than the header",
		Action:  "Fix the row or merge with malformed rows set to skip",
		Code:    "CSV002",
	}},
	{tabular.ErrTruncatedInput, UserMessage{
		Message: "A quoted field is never closed",
		Action:  "Check the file for a missing closing quote",
		Code:    "CSV003",
	}},
	{tabular.ErrInvalidDialect, UserMessage{
		Message: "The delimiter or quote settings cannot be used",
		Action:  "Pick a delimiter and a quote character that differ",
		Code:    "CSV004",
	}},

	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{ErrNotCSV, UserMessage{
		Message: "File is not a CSV file",
		Action:  "Upload files saved as .csv",
		Code:    "FILE002",
	}},
	{ErrUnreadableFile, UserMessage{
		Message: "File could not be read",
		Action:  "Please try uploading the file again",
		Code:    "FILE003",
	}},
	{ErrNoSources, UserMessage{
		Message: "No file was selected",
		Action:  "Please select one or more CSV files to merge",
		Code:    "FILE004",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload CSV files with a header row",
		Code:    "FILE005",
	}},

	{ErrUnknownProfile, UserMessage{
		Message: "Unknown merge profile",
		Action:  "Choose one of the profiles listed on the page",
		Code:    "MRG001",
	}},
	{ErrInvalidOptions, UserMessage{
		Message: "The merge settings are invalid",
		Action:  "Check the key column, delimiter, quote and malformed row settings",
		Code:    "MRG002",
	}},
	{ErrTooManyFiles, UserMessage{
		Message: "Too many files in one merge",
		Action:  "Merge fewer files at once, then merge the results",
		Code:    "MRG003",
	}},

	{ErrRequestTooLarge, UserMessage{
		Message: "The upload is too large",
		Action:  "Send fewer or smaller files",
		Code:    "UPL001",
	}},
	{ErrTooBusy, UserMessage{
		Message: "System is busy with other merges",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{ErrBadForm, UserMessage{
		Message: "The upload form could not be read",
		Action:  "Submit the files again from the merge page",
		Code:    "UPL003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try merging smaller files or check your connection",
		Code:    "UPL005",
	}},
}

// errorPatterns covers errors from outside this module, matched
// case-insensitively against the error text.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"http: request body too large", UserMessage{
		Message: "The upload is too large",
		Action:  "Send fewer or smaller files",
		Code:    "UPL001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	_, err := svc.Merge(ctx, req)
//	msg := MapError(err) // msg.Code == "CSV003" for an unclosed quote
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
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
