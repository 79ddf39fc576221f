package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
)

func TestUsableColumns(t *testing.T) {
	ds := []string{"customer_reference_id", "item_purchased", "color"}
	table := []string{"customer_reference_id", "item_purchased", "purchase_amount_usd"}
	keys := []string{"customer_reference_id"}

	used, err := UsableColumns("t", ds, table, keys)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"customer_reference_id", "item_purchased"}
	if !reflect.DeepEqual(used, want) {
		t.Fatalf("used = %v, want %v", used, want)
	}
}

func TestUsableColumnsNoOverlap(t *testing.T) {
	_, err := UsableColumns("t", []string{"a"}, []string{"b"}, nil)
	if err == nil {
		t.Fatal("empty intersection must be an error")
	}
}

func TestUsableColumnsKeyMissing(t *testing.T) {
	_, err := UsableColumns("t", []string{"a", "k"}, []string{"a"}, []string{"k"})
	if err == nil {
		t.Fatal("key column dropped by intersection must be an error")
	}
}

func TestNonKeyColumns(t *testing.T) {
	got := NonKeyColumns([]string{"a", "b", "c"}, []string{"b"})
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("NonKeyColumns = %v", got)
	}
}

func TestRowValues(t *testing.T) {
	rows := RowValues([]string{"a", "b"}, []records.Record{
		{"a": int64(1), "b": "x"},
		{"a": int64(2)},
	})
	want := [][]any{{int64(1), "x"}, {int64(2), nil}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestRejectRows(t *testing.T) {
	at := time.Date(2023, 10, 9, 0, 0, 0, 0, time.UTC)
	rows := RejectRows([]reject.Record{
		{SourceName: "s", Reason: "type_cast_failed", Payload: "{}", RejectedAt: at},
	})
	want := [][]any{{"s", "type_cast_failed", "{}", at}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestFactoryUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestFactoryRegisterAndNew(t *testing.T) {
	fake := fakeRepository{}
	Register("fake-kind", func(ctx context.Context, cfg Config) (Repository, error) {
		return fake, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-kind"})
	if err != nil {
		t.Fatal(err)
	}
	if repo != fake {
		t.Fatal("factory returned a different repository")
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake-kind" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds() = %v, missing fake-kind", Kinds())
	}
}

type fakeRepository struct{}

func (fakeRepository) Upsert(context.Context, string, []string, records.Dataset) (int64, error) {
	return 0, nil
}
func (fakeRepository) InsertRejects(context.Context, string, []reject.Record) (int64, error) {
	return 0, nil
}
func (fakeRepository) Close() {}
