package tabular

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	records := []Record{
		NewRecord(Field{"URL", "u1"}, Field{"Title", "Hello"}, Field{"Body", "World"}),
		NewRecord(Field{"URL", "u2"}, Field{"Body", "only body"}),
	}

	var buf bytes.Buffer
	if err := Encode(&buf, Dialect{}, []string{"URL", "Title", "Body"}, records); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := "URL,Title,Body\r\nu1,Hello,World\r\nu2,,only body\r\n"
	if buf.String() != want {
		t.Errorf("Encode() = %q, want %q", buf.String(), want)
	}
}

func TestEncode_Quoting(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"plain", "abc", "abc"},
		{"delimiter", "a,b", `"a,b"`},
		{"quote", `say "hi"`, `"say ""hi"""`},
		{"newline", "a\nb", "\"a\nb\""},
		{"carriage return", "a\rb", "\"a\rb\""},
		{"leading space", " a", `" a"`},
		{"trailing tab", "a\t", "\"a\t\""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rec := NewRecord(Field{"K", "k"}, Field{"V", tt.value})
			if err := Encode(&buf, Dialect{Terminator: "\n"}, []string{"K", "V"}, []Record{rec}); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			want := "K,V\nk," + tt.want + "\n"
			if buf.String() != want {
				t.Errorf("Encode() = %q, want %q", buf.String(), want)
			}
		})
	}
}

func TestEncode_SingleEmptyColumnIsQuoted(t *testing.T) {
	var buf bytes.Buffer
	recs := []Record{NewRecord(Field{"A", ""}), NewRecord()}
	if err := Encode(&buf, Dialect{Terminator: "\n"}, []string{"A"}, recs); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.String() != "A\n\"\"\n\"\"\n" {
		t.Errorf("Encode() = %q", buf.String())
	}

	back := decodeAll(t, buf.String(), Dialect{})
	if len(back) != 2 {
		t.Fatalf("decoded %d records, want 2", len(back))
	}
}

func TestEncode_NoColumnsWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Dialect{}, nil, []Record{NewRecord(Field{"A", "1"})}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Encode() wrote %q, want nothing", buf.String())
	}
}

func TestEncoder_WriteBeforeHeader(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{}, Dialect{})
	if err := enc.Write(NewRecord()); err == nil {
		t.Error("Write() before WriteHeader should fail")
	}
	if err := enc.WriteHeader([]string{"A"}); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := enc.WriteHeader([]string{"A"}); err == nil {
		t.Error("second WriteHeader() should fail")
	}
}

// Absent columns come back as empty strings; everything else is unchanged.
func TestRoundTrip(t *testing.T) {
	columns := []string{"URL", "Title", "Body"}
	records := []Record{
		NewRecord(Field{"URL", "u1"}, Field{"Title", "a,b"}, Field{"Body", "x\r\ny \"q\""}),
		NewRecord(Field{"URL", " u2 "}, Field{"Body", ""}),
		NewRecord(Field{"URL", "u3"}, Field{"Title", "'single'"}),
	}

	for _, d := range []Dialect{{}, {Delimiter: '\t', Terminator: "\n"}, {Delimiter: ';', Quote: '\''}} {
		var buf bytes.Buffer
		if err := Encode(&buf, d, columns, records); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		back, err := NewDecoder(strings.NewReader(buf.String()), d).ReadAll()
		if err != nil {
			t.Fatalf("decode error = %v (input %q)", err, buf.String())
		}
		if len(back) != len(records) {
			t.Fatalf("decoded %d records, want %d", len(back), len(records))
		}
		for i, rec := range records {
			for _, col := range columns {
				got, ok := back[i].Get(col)
				if !ok {
					t.Errorf("record %d: column %s absent after round trip", i, col)
				}
				if want := rec.Value(col); got != want {
					t.Errorf("record %d %s = %q, want %q", i, col, got, want)
				}
			}
		}
	}
}
