package tabular

// Field is one named cell of a record.
type Field struct {
	Name  string
	Value string
}

// Record is an ordered mapping from column name to text value.
//
// A column that is absent differs from one holding the empty string: Get
// reports the former with ok == false. Records are immutable; accessors that
// return slices return copies.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord builds a record from fields in order. A repeated name keeps its
// first position and takes the later value.
func NewRecord(fields ...Field) Record {
	r := Record{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if i, ok := r.index[f.Name]; ok {
			r.fields[i].Value = f.Value
			continue
		}
		r.index[f.Name] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r
}

// Get returns the value of column name and whether the column is present.
func (r Record) Get(name string) (string, bool) {
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.fields[i].Value, true
}

// Value returns the value of column name, or "" when absent.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Has reports whether column name is present.
func (r Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Len returns the number of present columns.
func (r Record) Len() int { return len(r.fields) }

// Columns returns the present column names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r.fields))
	for i, f := range r.fields {
		cols[i] = f.Name
	}
	return cols
}

// Fields returns a copy of the record's fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Each calls fn for every field in order without copying.
func (r Record) Each(fn func(name, value string)) {
	for _, f := range r.fields {
		fn(f.Name, f.Value)
	}
}

// Map returns the record as a plain map. Column order is lost.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		m[f.Name] = f.Value
	}
	return m
}

// Equal reports whether both records hold the same fields in the same order.
func (r Record) Equal(o Record) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i, f := range r.fields {
		if o.fields[i] != f {
			return false
		}
	}
	return true
}
