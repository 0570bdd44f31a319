// Package merge folds keyed records from ordered sources into one row per key.
//
// Records are processed in source order, then row order. For each key the
// most recently accepted record wins column by column; columns a later record
// does not carry keep their earlier value. Output rows come out in the order
// their keys were first seen, and the column list is every column of every
// accepted record in first-seen order.
package merge

import (
	"errors"
	"io"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

// DefaultKeyColumn is the business key used when Options.KeyColumn is empty.
const DefaultKeyColumn = "URL"

// Options configures a merge run.
type Options struct {
	// KeyColumn names the column whose trimmed value identifies a row.
	KeyColumn string

	// Predicate filters keyed records. Nil accepts all.
	Predicate Predicate
}

// Source yields records until it returns io.EOF. *tabular.Decoder is a Source.
type Source interface {
	Next() (tabular.Record, error)
}

// Outcome says what Add did with a record.
type Outcome int

const (
	Accepted Outcome = iota
	// NoKey: key column absent or blank after trimming.
	NoKey
	// Filtered: rejected by the predicate.
	Filtered
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case NoKey:
		return "no_key"
	case Filtered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Merger is the accumulator for one run. It is not safe for concurrent use;
// create one per run.
type Merger struct {
	keyColumn string
	accept    Predicate

	keys    []string
	entries map[string]*row

	columns []string
	seen    map[string]struct{}
}

type row struct {
	fields []tabular.Field
	index  map[string]int
}

func (r *row) set(name, value string) {
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, tabular.Field{Name: name, Value: value})
}

// New returns an empty merger.
func New(opts Options) *Merger {
	key := opts.KeyColumn
	if key == "" {
		key = DefaultKeyColumn
	}
	accept := opts.Predicate
	if accept == nil {
		accept = AcceptAll
	}
	return &Merger{
		keyColumn: key,
		accept:    accept,
		entries:   make(map[string]*row),
		seen:      make(map[string]struct{}),
	}
}

// KeyColumn returns the column the merger keys on.
func (m *Merger) KeyColumn() string { return m.keyColumn }

// Add folds one record into the accumulator. The record is only read.
func (m *Merger) Add(rec tabular.Record) Outcome {
	raw, ok := rec.Get(m.keyColumn)
	if !ok {
		return NoKey
	}
	key := strings.TrimSpace(raw)
	if key == "" {
		return NoKey
	}
	if !m.accept(rec) {
		return Filtered
	}

	entry, exists := m.entries[key]
	if !exists {
		entry = &row{
			fields: make([]tabular.Field, 0, rec.Len()),
			index:  make(map[string]int, rec.Len()),
		}
		m.entries[key] = entry
		m.keys = append(m.keys, key)
	}

	rec.Each(func(name, value string) {
		entry.set(name, value)
		if _, ok := m.seen[name]; !ok {
			m.seen[name] = struct{}{}
			m.columns = append(m.columns, name)
		}
	})
	return Accepted
}

// AddAll drains src into the merger and returns the first non-EOF error.
func (m *Merger) AddAll(src Source) error {
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		m.Add(rec)
	}
}

// Len returns the number of distinct keys.
func (m *Merger) Len() int { return len(m.keys) }

// Keys returns the distinct keys in first-seen order.
func (m *Merger) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Columns returns the column universe in first-seen order.
func (m *Merger) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Records materializes the merged rows in key first-seen order.
func (m *Merger) Records() []tabular.Record {
	out := make([]tabular.Record, len(m.keys))
	for i, k := range m.keys {
		out[i] = tabular.NewRecord(m.entries[k].fields...)
	}
	return out
}

// Result is the output of Merge.
type Result struct {
	Columns []string
	Records []tabular.Record
}

// Merge folds every source in order and returns the merged table. The first
// source error aborts the run and no result is returned.
func Merge(opts Options, sources ...Source) (*Result, error) {
	m := New(opts)
	for _, src := range sources {
		if err := m.AddAll(src); err != nil {
			return nil, err
		}
	}
	return &Result{Columns: m.Columns(), Records: m.Records()}, nil
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []tabular.Record
	pos     int
}

// FromSlice returns a Source over recs.
func FromSlice(recs ...tabular.Record) *SliceSource {
	return &SliceSource{records: recs}
}

// Next implements Source.
func (s *SliceSource) Next() (tabular.Record, error) {
	if s.pos >= len(s.records) {
		return tabular.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
