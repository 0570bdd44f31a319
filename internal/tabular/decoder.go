package tabular

// decoder.go reads delimiter-separated text one record at a time.
//
// Quoting follows RFC 4180 with a configurable quote rune: a field that starts
// with the quote may contain the delimiter, line breaks, and doubled quotes.
// A quote elsewhere in a field is kept literally, as is any text between a
// closing quote and the next delimiter.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const byteOrderMark = '\uFEFF'

// Decoder reads records from one stream. It is not safe for concurrent use
// and cannot be rewound; decode the same data again with a fresh Decoder.
type Decoder struct {
	// Name identifies the source in returned errors.
	Name string

	src     *bufio.Reader
	dialect Dialect
	buf     strings.Builder

	header  []string // "" marks an ignored column
	started bool
	line    int
	recLine int
	skipped int
	err     error
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, dialect Dialect) *Decoder {
	return &Decoder{
		src:     bufio.NewReader(r),
		dialect: dialect.withDefaults(),
	}
}

// Header returns the column names of the header row, reading it if needed.
// Empty header cells are left out and duplicate names carry a numeric suffix.
func (d *Decoder) Header() ([]string, error) {
	if d.header == nil && d.err == nil {
		if err := d.readHeader(); err != nil {
			d.err = err
		}
	}
	if d.header == nil {
		return nil, d.err
	}
	cols := make([]string, 0, len(d.header))
	for _, name := range d.header {
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols, nil
}

// Next returns the next record, or io.EOF once the stream is exhausted.
// Errors are sticky: after the first one every call returns it again.
func (d *Decoder) Next() (Record, error) {
	if d.err != nil {
		return Record{}, d.err
	}
	if d.header == nil {
		if err := d.readHeader(); err != nil {
			d.err = err
			return Record{}, err
		}
	}

	for {
		start := d.line + 1
		fields, err := d.readRow()
		if err != nil {
			d.err = err
			return Record{}, err
		}
		if fields == nil {
			continue
		}
		if len(fields) > len(d.header) {
			if d.dialect.Malformed == MalformedFail {
				d.err = &MalformedRowError{
					Source:  d.Name,
					Line:    start,
					Fields:  len(fields),
					Columns: len(d.header),
				}
				return Record{}, d.err
			}
			d.skipped++
			continue
		}
		d.recLine = start
		return d.record(fields), nil
	}
}

// ReadAll decodes every remaining record.
func (d *Decoder) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Line returns the line on which the last returned record started.
func (d *Decoder) Line() int { return d.recLine }

// Skipped returns how many malformed rows were dropped under MalformedSkip.
func (d *Decoder) Skipped() int { return d.skipped }

func (d *Decoder) readHeader() error {
	for {
		fields, err := d.readRow()
		if errors.Is(err, io.EOF) {
			return &EmptyInputError{Source: d.Name}
		}
		if err != nil {
			return err
		}
		if fields != nil {
			d.header = uniqueHeader(fields)
			return nil
		}
	}
}

func (d *Decoder) record(values []string) Record {
	fields := make([]Field, 0, len(values))
	for i, v := range values {
		if name := d.header[i]; name != "" {
			fields = append(fields, Field{Name: name, Value: v})
		}
	}
	return NewRecord(fields...)
}

// readRow reads one logical row. A blank line yields (nil, nil) and the end
// of the stream yields io.EOF.
func (d *Decoder) readRow() ([]string, error) {
	r, err := d.readRune()
	if err != nil {
		return nil, d.wrapReadErr(err)
	}
	d.line++
	start := d.line

	if r == '\n' || r == '\r' {
		return nil, d.endLine(r)
	}

	var fields []string
	d.buf.Reset()
	quoted := false
	fieldStart := true

	for {
		nextField := false
		switch {
		case quoted:
			if r != d.dialect.Quote {
				if r == '\n' {
					d.line++
				}
				d.buf.WriteRune(r)
				break
			}
			next, err := d.readRune()
			switch {
			case err == nil && next == d.dialect.Quote:
				d.buf.WriteRune(next)
			case err == nil:
				_ = d.src.UnreadRune()
				quoted = false
			case errors.Is(err, io.EOF):
				quoted = false
			default:
				return nil, d.wrapReadErr(err)
			}
		case r == d.dialect.Quote && fieldStart:
			quoted = true
		case r == d.dialect.Delimiter:
			fields = append(fields, d.buf.String())
			d.buf.Reset()
			nextField = true
		case r == '\n' || r == '\r':
			if err := d.endLine(r); err != nil {
				return nil, err
			}
			return append(fields, d.buf.String()), nil
		default:
			d.buf.WriteRune(r)
		}
		fieldStart = nextField

		r, err = d.readRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, d.wrapReadErr(err)
			}
			if quoted {
				return nil, &TruncatedInputError{Source: d.Name, Line: start}
			}
			return append(fields, d.buf.String()), nil
		}
	}
}

// readRune returns the next rune, dropping a leading byte order mark.
// Invalid UTF-8 comes back as U+FFFD.
func (d *Decoder) readRune() (rune, error) {
	r, _, err := d.src.ReadRune()
	if err != nil {
		return 0, err
	}
	if !d.started {
		d.started = true
		if r == byteOrderMark {
			return d.readRune()
		}
	}
	return r, nil
}

// endLine consumes the '\n' of a "\r\n" pair.
func (d *Decoder) endLine(r rune) error {
	if r != '\r' {
		return nil
	}
	next, err := d.readRune()
	switch {
	case err == nil && next != '\n':
		_ = d.src.UnreadRune()
	case err != nil && !errors.Is(err, io.EOF):
		return d.wrapReadErr(err)
	}
	return nil
}

func (d *Decoder) wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("read %s: %w", sourceName(d.Name), err)
}

// uniqueHeader blanks empty names and suffixes repeats: A, A -> A, A_1.
func uniqueHeader(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if n == "" {
			continue
		}
		name := n
		for k := 1; seen[name]; k++ {
			name = n + "_" + strconv.Itoa(k)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
