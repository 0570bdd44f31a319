package tabular

import "testing"

func TestNewRecord_RepeatedNameKeepsPosition(t *testing.T) {
	rec := NewRecord(Field{"A", "1"}, Field{"B", "2"}, Field{"A", "3"})

	if rec.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rec.Len())
	}
	if cols := rec.Columns(); cols[0] != "A" || cols[1] != "B" {
		t.Errorf("Columns() = %v, want [A B]", cols)
	}
	if rec.Value("A") != "3" {
		t.Errorf("A = %q, want 3", rec.Value("A"))
	}
}

func TestRecord_AbsentVersusEmpty(t *testing.T) {
	rec := NewRecord(Field{"A", ""})

	if v, ok := rec.Get("A"); !ok || v != "" {
		t.Errorf("Get(A) = %q, %v; want \"\", true", v, ok)
	}
	if _, ok := rec.Get("B"); ok {
		t.Error("Get(B) reported present")
	}
}

func TestRecord_FieldsIsACopy(t *testing.T) {
	rec := NewRecord(Field{"A", "1"})
	fields := rec.Fields()
	fields[0].Value = "changed"

	if rec.Value("A") != "1" {
		t.Error("mutating Fields() result changed the record")
	}
}

func TestRecord_Equal(t *testing.T) {
	a := NewRecord(Field{"A", "1"}, Field{"B", "2"})
	b := NewRecord(Field{"A", "1"}, Field{"B", "2"})
	c := NewRecord(Field{"B", "2"}, Field{"A", "1"})

	if !a.Equal(b) {
		t.Error("identical records not equal")
	}
	if a.Equal(c) {
		t.Error("records with different column order reported equal")
	}
}
