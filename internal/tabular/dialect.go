// Package tabular reads and writes delimiter-separated text as ordered records.
//
// A [Decoder] turns one byte stream into [Record] values keyed by the header
// row; an [Encoder] writes records back out under a caller-supplied column
// list. Both share a [Dialect] so that anything the encoder writes the decoder
// reads back unchanged (apart from absent columns, which come back empty).
package tabular

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MalformedPolicy controls what the decoder does with a row that has more
// fields than the header.
type MalformedPolicy string

const (
	// MalformedSkip drops the row and keeps reading. This is the default.
	MalformedSkip MalformedPolicy = "skip"
	// MalformedFail stops decoding with a *MalformedRowError.
	MalformedFail MalformedPolicy = "fail"
)

// ParseMalformedPolicy converts a config or flag value into a policy.
// An empty string yields the default.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return MalformedSkip, nil
	case "fail", "fail-fast":
		return MalformedFail, nil
	default:
		return "", fmt.Errorf("unknown malformed row policy %q (want skip or fail)", s)
	}
}

// Default dialect values.
const (
	DefaultDelimiter  = ','
	DefaultQuote      = '"'
	DefaultTerminator = "\r\n"
)

// Dialect is the single delimiter/quote convention used for a run.
// The zero value is usable and means comma, double quote, CRLF, skip.
type Dialect struct {
	Delimiter rune
	Quote     rune

	// Terminator ends every row written by the encoder: "\r\n" or "\n".
	// The decoder accepts either, plus a bare "\r".
	Terminator string

	Malformed MalformedPolicy
}

// DefaultDialect returns comma/double-quote with CRLF rows and the skip policy.
func DefaultDialect() Dialect {
	return Dialect{}.withDefaults()
}

func (d Dialect) withDefaults() Dialect {
	if d.Delimiter == 0 {
		d.Delimiter = DefaultDelimiter
	}
	if d.Quote == 0 {
		d.Quote = DefaultQuote
	}
	if d.Terminator == "" {
		d.Terminator = DefaultTerminator
	}
	if d.Malformed == "" {
		d.Malformed = MalformedSkip
	}
	return d
}

// Validate reports a dialect that cannot round-trip.
func (d Dialect) Validate() error {
	d = d.withDefaults()
	if !validSeparator(d.Delimiter) {
		return fmt.Errorf("%w: delimiter %q", ErrInvalidDialect, d.Delimiter)
	}
	if !validSeparator(d.Quote) {
		return fmt.Errorf("%w: quote %q", ErrInvalidDialect, d.Quote)
	}
	if d.Delimiter == d.Quote {
		return fmt.Errorf("%w: delimiter and quote must differ (both %q)", ErrInvalidDialect, d.Delimiter)
	}
	if d.Terminator != "\r\n" && d.Terminator != "\n" {
		return fmt.Errorf("%w: line terminator %q", ErrInvalidDialect, d.Terminator)
	}
	if d.Malformed != MalformedSkip && d.Malformed != MalformedFail {
		return fmt.Errorf("%w: malformed row policy %q", ErrInvalidDialect, d.Malformed)
	}
	return nil
}

func validSeparator(r rune) bool {
	return r != 0 && r != '\r' && r != '\n' && r != utf8.RuneError && r != '\uFEFF' && utf8.ValidRune(r)
}

// ParseRune reads a single-character setting such as a delimiter.
// Besides a literal character it accepts the names "tab", "comma",
// "semicolon", "pipe" and the escape `\t`. An empty string returns 0,
// which the dialect treats as "use the default".
func ParseRune(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("%q is not a single character", s)
	}
	return r, nil
}
