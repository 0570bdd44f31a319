package tabular

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrEmptyInput     = errors.New("empty input")
	ErrMalformedRow   = errors.New("malformed row")
	ErrTruncatedInput = errors.New("truncated input")
	ErrInvalidDialect = errors.New("invalid dialect")
)

// EmptyInputError means a source had no header row.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: %s has no header row", sourceName(e.Source))
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// MalformedRowError means a row had more fields than the header. It is only
// returned under MalformedFail.
type MalformedRowError struct {
	Source  string
	Line    int
	Fields  int
	Columns int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row: %s line %d has %d fields, header has %d",
		sourceName(e.Source), e.Line, e.Fields, e.Columns)
}

func (e *MalformedRowError) Is(target error) bool { return target == ErrMalformedRow }

// TruncatedInputError means the stream ended inside a quoted field.
// Line is where the unterminated record started.
type TruncatedInputError struct {
	Source string
	Line   int
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("truncated input: %s ends inside a quoted field opened on line %d",
		sourceName(e.Source), e.Line)
}

func (e *TruncatedInputError) Is(target error) bool { return target == ErrTruncatedInput }

func sourceName(s string) string {
	if s == "" {
		return "input"
	}
	return s
}
