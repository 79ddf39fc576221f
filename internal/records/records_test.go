package records

import (
	"reflect"
	"testing"
	"time"
)

func TestCloneIsIndependent(t *testing.T) {
	r := Record{"a": "x", "b": int64(1)}
	c := r.Clone()
	c["a"] = "y"

	if r["a"] != "x" {
		t.Fatalf("mutating the clone changed the original: %v", r)
	}
	if !reflect.DeepEqual(c, Record{"a": "y", "b": int64(1)}) {
		t.Fatalf("unexpected clone: %v", c)
	}
}

func TestRename(t *testing.T) {
	ds := New([]string{"purchase amount (usd)", "extra"})
	ds.Append(Record{"purchase amount (usd)": 12.5, "extra": "keep"})

	out := Rename(ds, map[string]string{"purchase amount (usd)": "purchase_amount_usd"})

	wantCols := []string{"purchase_amount_usd", "extra"}
	if !reflect.DeepEqual(out.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
	}
	want := Record{"purchase_amount_usd": 12.5, "extra": "keep"}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("row = %v, want %v", out.Rows[0], want)
	}

	// Input is untouched.
	if _, ok := ds.Rows[0]["purchase amount (usd)"]; !ok {
		t.Fatal("input dataset was mutated")
	}
}

func TestHasColumns(t *testing.T) {
	ds := New([]string{"a", "b"})
	if !ds.HasColumns("a", "b") {
		t.Fatal("expected both columns present")
	}
	if ds.HasColumns("a", "c") {
		t.Fatal("expected missing column to be reported")
	}
}

func TestString(t *testing.T) {
	ts := time.Date(2023, 10, 4, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{int64(42), "42"},
		{12.5, "12.5"},
		{ts, "2023-10-04T00:00:00Z"},
	}
	for _, c := range cases {
		if got := String(c.in); got != c.want {
			t.Errorf("String(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
