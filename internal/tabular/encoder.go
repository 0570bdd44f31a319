package tabular

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Encoder writes records under a fixed column list.
//
// Fields containing the delimiter, the quote, a line break, or leading or
// trailing spaces are quoted with embedded quotes doubled. Absent columns are
// written as empty fields, so decoding the output turns absence into "".
type Encoder struct {
	w       *bufio.Writer
	dialect Dialect
	columns []string
	started bool
}

// NewEncoder returns an encoder writing to w. Call Flush when done.
func NewEncoder(w io.Writer, dialect Dialect) *Encoder {
	return &Encoder{
		w:       bufio.NewWriter(w),
		dialect: dialect.withDefaults(),
	}
}

// WriteHeader writes the header row and fixes the column order for Write.
// An empty column list writes nothing, and every later Write is a no-op.
func (e *Encoder) WriteHeader(columns []string) error {
	if e.started {
		return errors.New("tabular: header already written")
	}
	e.started = true
	e.columns = append([]string(nil), columns...)
	if len(e.columns) == 0 {
		return nil
	}
	return e.writeRow(e.columns)
}

// Write writes one record in header column order.
func (e *Encoder) Write(rec Record) error {
	if !e.started {
		return errors.New("tabular: Write called before WriteHeader")
	}
	if len(e.columns) == 0 {
		return nil
	}
	row := make([]string, len(e.columns))
	for i, col := range e.columns {
		row[i] = rec.Value(col)
	}
	return e.writeRow(row)
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

func (e *Encoder) writeRow(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			e.w.WriteRune(e.dialect.Delimiter)
		}
		if e.needsQuotes(f, len(fields)) {
			e.writeQuoted(f)
		} else {
			e.w.WriteString(f)
		}
	}
	_, err := e.w.WriteString(e.dialect.Terminator)
	return err
}

func (e *Encoder) writeQuoted(f string) {
	q := e.dialect.Quote
	e.w.WriteRune(q)
	for _, r := range f {
		if r == q {
			e.w.WriteRune(q)
		}
		e.w.WriteRune(r)
	}
	e.w.WriteRune(q)
}

func (e *Encoder) needsQuotes(f string, width int) bool {
	if f == "" {
		// A lone empty field would read back as a blank line.
		return width == 1
	}
	if strings.ContainsRune(f, e.dialect.Delimiter) ||
		strings.ContainsRune(f, e.dialect.Quote) ||
		strings.ContainsAny(f, "\r\n") {
		return true
	}
	if strings.HasPrefix(f, string(byteOrderMark)) {
		return true
	}
	first, last := f[0], f[len(f)-1]
	return first == ' ' || first == '\t' || last == ' ' || last == '\t'
}

// Encode writes columns as the header followed by records.
func Encode(w io.Writer, dialect Dialect, columns []string, records []Record) error {
	enc := NewEncoder(w, dialect)
	if err := enc.WriteHeader(columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := enc.Write(rec); err != nil {
			return err
		}
	}
	return enc.Flush()
}
