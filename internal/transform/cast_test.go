package transform

import (
	"testing"
	"time"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/schema"
)

func fashionSchema() schema.Schema {
	return schema.Schema{
		"customer reference id": schema.KindInt,
		"item purchased":        schema.KindString,
		"purchase amount (usd)": schema.KindFloat,
		"date purchase":         schema.KindDatetime,
		"review rating":         schema.KindFloat,
		"payment method":        schema.KindString,
	}
}

func TestCasterValidRow(t *testing.T) {
	ds := records.New([]string{"customer reference id", "purchase amount (usd)", "date purchase"})
	ds.Append(records.Record{
		"customer reference id": "4018.0",
		"purchase amount (usd)": "129.90",
		"date purchase":         "2023-10-04",
	})

	part := Caster{Schema: fashionSchema()}.Apply(ds)
	if part.Valid.Len() != 1 || part.Rejected.Len() != 0 {
		t.Fatalf("valid=%d rejected=%d", part.Valid.Len(), part.Rejected.Len())
	}

	row := part.Valid.Rows[0]
	if row["customer reference id"] != int64(4018) {
		t.Errorf("id = %#v, want int64(4018)", row["customer reference id"])
	}
	if row["purchase amount (usd)"] != 129.90 {
		t.Errorf("amount = %#v", row["purchase amount (usd)"])
	}
	want := time.Date(2023, 10, 4, 0, 0, 0, 0, time.UTC)
	if ts, ok := row["date purchase"].(time.Time); !ok || !ts.Equal(want) {
		t.Errorf("date = %#v, want %v", row["date purchase"], want)
	}
}

func TestCasterRejectsBadInt(t *testing.T) {
	ds := records.New([]string{"customer reference id", "item purchased"})
	ds.Append(records.Record{"customer reference id": "ABC", "item purchased": "Belt"})

	part := Caster{Schema: fashionSchema()}.Apply(ds)
	if part.Valid.Len() != 0 || part.Rejected.Len() != 1 {
		t.Fatalf("valid=%d rejected=%d", part.Valid.Len(), part.Rejected.Len())
	}
	// The failed cell keeps its original raw value for diagnosis.
	if part.Rejected.Rows[0]["customer reference id"] != "ABC" {
		t.Errorf("rejected cell = %#v, want original string", part.Rejected.Rows[0]["customer reference id"])
	}
}

func TestCasterRejectsMissingNumeric(t *testing.T) {
	ds := records.New([]string{"purchase amount (usd)", "item purchased"})
	ds.Append(records.Record{"purchase amount (usd)": nil, "item purchased": "Belt"})

	part := Caster{Schema: fashionSchema()}.Apply(ds)
	if part.Rejected.Len() != 1 {
		t.Fatalf("missing float column must reject, got valid=%d", part.Valid.Len())
	}
}

func TestCasterMissingStringIsFine(t *testing.T) {
	ds := records.New([]string{"purchase amount (usd)", "payment method"})
	ds.Append(records.Record{"purchase amount (usd)": "10", "payment method": nil})

	part := Caster{Schema: fashionSchema()}.Apply(ds)
	if part.Valid.Len() != 1 {
		t.Fatalf("null string column must not reject, got rejected=%d", part.Rejected.Len())
	}
	if part.Valid.Rows[0]["payment method"] != nil {
		t.Errorf("null string cell should stay nil, got %#v", part.Valid.Rows[0]["payment method"])
	}
}

func TestCasterUndeclaredColumnPassesThrough(t *testing.T) {
	ds := records.New([]string{"color"})
	ds.Append(records.Record{"color": "teal"})

	part := Caster{Schema: fashionSchema()}.Apply(ds)
	if part.Valid.Len() != 1 || part.Valid.Rows[0]["color"] != "teal" {
		t.Fatalf("undeclared column changed: %v", part.Valid.Rows)
	}
}

func TestCasterPartitionCoversInput(t *testing.T) {
	ds := records.New([]string{"customer reference id"})
	for _, v := range []any{"1", "two", "3", nil} {
		ds.Append(records.Record{"customer reference id": v})
	}

	part := Caster{Schema: fashionSchema()}.Apply(ds)
	if part.Valid.Len()+part.Rejected.Len() != ds.Len() {
		t.Fatalf("partition does not cover input: %d + %d != %d",
			part.Valid.Len(), part.Rejected.Len(), ds.Len())
	}
	if part.Valid.Len() != 2 {
		t.Fatalf("valid = %d, want 2", part.Valid.Len())
	}
}

func TestCastValueDateLayouts(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2023-10-04", true},
		{"2023-10-04 15:30:00", true},
		{"2023-10-04T15:30:00Z", true},
		{"10/04/2023", true},
		{"04.10.2023", false},
	}
	for _, c := range cases {
		_, ok := castValue(schema.KindDatetime, c.in, defaultDateLayouts)
		if ok != c.ok {
			t.Errorf("castValue(datetime, %q) ok = %v, want %v", c.in, ok, c.ok)
		}
	}
}
