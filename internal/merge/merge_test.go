package merge

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvmerge/internal/tabular"
)

func rec(kv ...string) tabular.Record {
	fields := make([]tabular.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, tabular.Field{Name: kv[i], Value: kv[i+1]})
	}
	return tabular.NewRecord(fields...)
}

func csvSource(name, data string) *tabular.Decoder {
	dec := tabular.NewDecoder(strings.NewReader(data), tabular.Dialect{})
	dec.Name = name
	return dec
}

func mustMerge(t *testing.T, opts Options, sources ...Source) *Result {
	t.Helper()
	res, err := Merge(opts, sources...)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	return res
}

func TestMerge_TwoFilesDifferentColumns(t *testing.T) {
	res := mustMerge(t, Options{},
		csvSource("a.csv", "URL,Title\nu1,Hello\n"),
		csvSource("b.csv", "URL,Body\nu1,World\n"),
	)

	if got := strings.Join(res.Columns, ","); got != "URL,Title,Body" {
		t.Errorf("Columns = %q, want URL,Title,Body", got)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}

	var buf bytes.Buffer
	if err := tabular.Encode(&buf, tabular.Dialect{Terminator: "\n"}, res.Columns, res.Records); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.String() != "URL,Title,Body\nu1,Hello,World\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestMerge_LastWriteWins(t *testing.T) {
	res := mustMerge(t, Options{}, FromSlice(
		rec("URL", "u1", "A", "old", "B", "keep"),
		rec("URL", "u1", "A", "new"),
	))

	got := res.Records[0]
	if got.Value("A") != "new" {
		t.Errorf("A = %q, want new", got.Value("A"))
	}
	if got.Value("B") != "keep" {
		t.Errorf("B = %q, want keep", got.Value("B"))
	}
}

func TestMerge_EmptyValueOverwrites(t *testing.T) {
	res := mustMerge(t, Options{}, FromSlice(
		rec("URL", "u1", "A", "value"),
		rec("URL", "u1", "A", ""),
	))
	if v, ok := res.Records[0].Get("A"); !ok || v != "" {
		t.Errorf("A = %q (present %v), want present empty string", v, ok)
	}
}

func TestMerge_PartialOverlap(t *testing.T) {
	res := mustMerge(t, Options{}, FromSlice(
		rec("URL", "k", "A", "a1", "B", "b1"),
		rec("URL", "k", "B", "b2", "C", "c2"),
	))

	want := map[string]string{"URL": "k", "A": "a1", "B": "b2", "C": "c2"}
	got := res.Records[0].Map()
	if len(got) != len(want) {
		t.Fatalf("merged record = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestMerge_KeyIsTrimmed(t *testing.T) {
	res := mustMerge(t, Options{}, FromSlice(
		rec("URL", "  u1 ", "A", "1"),
		rec("URL", "u1", "B", "2"),
	))
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	// The stored cell keeps the latest raw value.
	if res.Records[0].Value("URL") != "u1" {
		t.Errorf("URL = %q, want u1", res.Records[0].Value("URL"))
	}
}

func TestMerge_MissingKeyDropsRow(t *testing.T) {
	res := mustMerge(t, Options{}, FromSlice(
		rec("Title", "no key", "OnlyHere", "x"),
		rec("URL", "   ", "Blank", "y"),
		rec("URL", "u1", "Title", "kept"),
	))

	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if got := strings.Join(res.Columns, ","); got != "URL,Title" {
		t.Errorf("Columns = %q, want URL,Title", got)
	}
}

func TestMerge_KeyFirstSeenOrder(t *testing.T) {
	res := mustMerge(t, Options{},
		FromSlice(rec("URL", "z"), rec("URL", "a")),
		FromSlice(rec("URL", "m"), rec("URL", "z", "X", "1")),
	)

	var keys []string
	for _, r := range res.Records {
		keys = append(keys, r.Value("URL"))
	}
	if got := strings.Join(keys, ","); got != "z,a,m" {
		t.Errorf("key order = %q, want z,a,m", got)
	}
}

func TestMerge_ColumnUniverseFirstSeenOrder(t *testing.T) {
	res := mustMerge(t, Options{},
		csvSource("a", "URL,C,A\nu1,1,2\n"),
		csvSource("b", "B,URL,A,D\n3,u2,4,5\n"),
	)
	if got := strings.Join(res.Columns, ","); got != "URL,C,A,B,D" {
		t.Errorf("Columns = %q, want URL,C,A,B,D", got)
	}
}

func TestMerge_OrderMatters(t *testing.T) {
	f1 := []tabular.Record{rec("URL", "u1", "T", "first")}
	f2 := []tabular.Record{rec("URL", "u1", "T", "second")}

	ab := mustMerge(t, Options{}, FromSlice(f1...), FromSlice(f2...))
	ba := mustMerge(t, Options{}, FromSlice(f2...), FromSlice(f1...))

	if ab.Records[0].Value("T") != "second" || ba.Records[0].Value("T") != "first" {
		t.Errorf("got %q and %q, want second and first",
			ab.Records[0].Value("T"), ba.Records[0].Value("T"))
	}
}

// Merging [F1, F2] equals merging F1 and then folding F2 into the same accumulator.
func TestMerge_FoldsLeftToRight(t *testing.T) {
	f1 := []tabular.Record{rec("URL", "a", "X", "1"), rec("URL", "b", "Y", "2")}
	f2 := []tabular.Record{rec("URL", "b", "X", "3"), rec("URL", "c", "Z", "4")}

	whole := mustMerge(t, Options{}, FromSlice(f1...), FromSlice(f2...))

	m := New(Options{})
	if err := m.AddAll(FromSlice(f1...)); err != nil {
		t.Fatal(err)
	}
	if err := m.AddAll(FromSlice(f2...)); err != nil {
		t.Fatal(err)
	}
	stepwise := m.Records()

	if strings.Join(whole.Columns, ",") != strings.Join(m.Columns(), ",") {
		t.Errorf("columns differ: %v vs %v", whole.Columns, m.Columns())
	}
	if len(whole.Records) != len(stepwise) {
		t.Fatalf("record counts differ: %d vs %d", len(whole.Records), len(stepwise))
	}
	for i := range stepwise {
		if !whole.Records[i].Equal(stepwise[i]) {
			t.Errorf("record %d: %v vs %v", i, whole.Records[i].Map(), stepwise[i].Map())
		}
	}
}

func TestMerge_FilterPredicate(t *testing.T) {
	filter := AllOf(ColumnContains("URL", "amazon"), LongerThan("Body", 1))
	res := mustMerge(t, Options{Predicate: filter}, csvSource("a.csv",
		"URL,Body\n"+
			"http://amazon.com/x,ok\n"+
			"http://other.com/x,ok\n"+
			"http://amazon.com/short,k\n"+
			"http://amazon.com/absent\n"))

	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if res.Records[0].Value("URL") != "http://amazon.com/x" {
		t.Errorf("kept %q, want http://amazon.com/x", res.Records[0].Value("URL"))
	}
}

func TestMerger_AddOutcome(t *testing.T) {
	m := New(Options{KeyColumn: "ID", Predicate: LongerThan("Body", 1)})

	tests := []struct {
		rec  tabular.Record
		want Outcome
	}{
		{rec("URL", "u1", "Body", "long"), NoKey},
		{rec("ID", "", "Body", "long"), NoKey},
		{rec("ID", "1", "Body", "x"), Filtered},
		{rec("ID", "1", "Body", "xy"), Accepted},
	}
	for i, tt := range tests {
		if got := m.Add(tt.rec); got != tt.want {
			t.Errorf("Add #%d = %v, want %v", i, got, tt.want)
		}
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMerge_MalformedRowSkipped(t *testing.T) {
	res := mustMerge(t, Options{}, csvSource("a.csv", "URL,Title\nu1,a\nu2,b,extra\nu3,c\n"))

	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	for _, r := range res.Records {
		if r.Value("URL") == "u2" {
			t.Error("malformed row u2 should have been skipped")
		}
	}
}

func TestMerge_DecoderErrorAbortsRun(t *testing.T) {
	_, err := Merge(Options{},
		csvSource("a.csv", "URL\nu1\n"),
		csvSource("b.csv", ""),
	)
	var eie *tabular.EmptyInputError
	if !errors.As(err, &eie) || eie.Source != "b.csv" {
		t.Fatalf("error = %v, want EmptyInputError for b.csv", err)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	first := rec("URL", "u1", "A", "1")
	second := rec("URL", "u1", "A", "2", "B", "3")
	mustMerge(t, Options{}, FromSlice(first, second))

	if first.Value("A") != "1" || first.Has("B") {
		t.Errorf("input record changed: %v", first.Map())
	}
}

func TestMerge_RoundTrip(t *testing.T) {
	res := mustMerge(t, Options{},
		csvSource("a", "URL,Title\nu1,\"Hello, world\"\nu2,x\n"),
		csvSource("b", "URL,Body\nu1,\"multi\nline\"\n"),
	)

	var buf bytes.Buffer
	if err := tabular.Encode(&buf, tabular.Dialect{}, res.Columns, res.Records); err != nil {
		t.Fatal(err)
	}
	back, err := tabular.NewDecoder(&buf, tabular.Dialect{}).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(back) != len(res.Records) {
		t.Fatalf("decoded %d records, want %d", len(back), len(res.Records))
	}
	for i, want := range res.Records {
		for _, col := range res.Columns {
			got, ok := back[i].Get(col)
			if !ok {
				t.Errorf("record %d: %s absent after round trip", i, col)
			}
			if got != want.Value(col) {
				t.Errorf("record %d: %s = %q, want %q", i, col, got, want.Value(col))
			}
		}
	}
	// u2 never had Body; after the round trip it is present and empty.
	if v, ok := back[1].Get("Body"); !ok || v != "" {
		t.Errorf("u2 Body = %q (present %v), want present empty", v, ok)
	}
}

func TestMerge_NoSources(t *testing.T) {
	res := mustMerge(t, Options{})
	if len(res.Records) != 0 || len(res.Columns) != 0 {
		t.Errorf("Merge() with no sources = %+v, want empty", res)
	}
}
