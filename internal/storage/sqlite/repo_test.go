package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
)

// openTestRepo creates a file-backed database in a temp dir. A file is used
// instead of :memory: because database/sql may open more than one connection,
// and each :memory: connection sees its own database.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "etl.db")
	repo, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(closeFn)
	return repo
}

func mustExec(t *testing.T, repo *Repository, sql string) {
	t.Helper()
	if _, err := repo.db.Exec(sql); err != nil {
		t.Fatal(err)
	}
}

func salesDataset(rows ...records.Record) records.Dataset {
	ds := records.New([]string{"customer_reference_id", "item_purchased", "date_purchase", "purchase_amount_usd"})
	for _, r := range rows {
		ds.Append(r)
	}
	return ds
}

func saleRow(id int64, item, date string, amount float64) records.Record {
	return records.Record{
		"customer_reference_id": id,
		"item_purchased":        item,
		"date_purchase":         date,
		"purchase_amount_usd":   amount,
	}
}

const salesDDL = `CREATE TABLE stg_fashion_sales (
	customer_reference_id INTEGER,
	item_purchased TEXT,
	date_purchase TEXT,
	purchase_amount_usd REAL,
	PRIMARY KEY (customer_reference_id, item_purchased, date_purchase)
)`

var salesKey = []string{"customer_reference_id", "item_purchased", "date_purchase"}

func TestUpsertInsertsAndUpdates(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	mustExec(t, repo, salesDDL)

	n, err := repo.Upsert(ctx, "stg_fashion_sales", salesKey,
		salesDataset(saleRow(4018, "Handbag", "2023-10-04", 129.90)))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("written = %d, want 1", n)
	}

	// Same key again: the row is overwritten, not duplicated.
	if _, err := repo.Upsert(ctx, "stg_fashion_sales", salesKey,
		salesDataset(saleRow(4018, "Handbag", "2023-10-04", 131.50))); err != nil {
		t.Fatal(err)
	}

	var count int
	var amount float64
	row := repo.db.QueryRow(`SELECT COUNT(*), MAX(purchase_amount_usd) FROM stg_fashion_sales`)
	if err := row.Scan(&count, &amount); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
	if amount != 131.50 {
		t.Fatalf("amount = %v, want the re-loaded value", amount)
	}
}

func TestUpsertIgnoresExtraDatasetColumns(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	mustExec(t, repo, salesDDL)

	ds := records.New([]string{"customer_reference_id", "item_purchased", "date_purchase", "color"})
	ds.Append(records.Record{
		"customer_reference_id": int64(1),
		"item_purchased":        "Scarf",
		"date_purchase":         "2023-10-07",
		"color":                 "teal",
	})

	if _, err := repo.Upsert(ctx, "stg_fashion_sales", salesKey, ds); err != nil {
		t.Fatalf("extra dataset column should be dropped, got %v", err)
	}
}

func TestUpsertEmptyDatasetIsNoop(t *testing.T) {
	repo := openTestRepo(t)
	// No table exists; an empty dataset must not even introspect.
	n, err := repo.Upsert(context.Background(), "missing_table", salesKey, salesDataset())
	if err != nil || n != 0 {
		t.Fatalf("empty upsert: n=%d err=%v", n, err)
	}
}

func TestUpsertNoOverlappingColumns(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	mustExec(t, repo, salesDDL)

	ds := records.New([]string{"unrelated"})
	ds.Append(records.Record{"unrelated": "x"})

	if _, err := repo.Upsert(ctx, "stg_fashion_sales", nil, ds); err == nil {
		t.Fatal("expected error for empty column intersection")
	}
}

func TestUpsertMissingTable(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.Upsert(context.Background(), "nope", salesKey,
		salesDataset(saleRow(1, "A", "2023-01-01", 1))); err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestInsertRejects(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	mustExec(t, repo, `CREATE TABLE stg_rejects (
		source_name TEXT,
		reason TEXT,
		payload TEXT,
		rejected_at TIMESTAMP
	)`)

	at := time.Date(2023, 10, 9, 12, 0, 0, 0, time.UTC)
	recs := []reject.Record{
		{SourceName: "fashion_sales", Reason: reject.ReasonTypeCastFailed, Payload: `{"customer reference id":"ABC"}`, RejectedAt: at},
		{SourceName: "fashion_sales", Reason: reject.ReasonBusinessRuleFailed, Payload: `{"review rating":6}`, RejectedAt: at},
	}

	n, err := repo.InsertRejects(ctx, "stg_rejects", recs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}

	var count int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM stg_rejects WHERE reason = ?`,
		reject.ReasonTypeCastFailed).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("cast rejects = %d, want 1", count)
	}

	// Append-only: a second batch adds rows.
	if _, err := repo.InsertRejects(ctx, "stg_rejects", recs[:1]); err != nil {
		t.Fatal(err)
	}
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM stg_rejects`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("total rejects = %d, want 3", count)
	}
}

func TestInsertRejectsEmptyInput(t *testing.T) {
	repo := openTestRepo(t)
	n, err := repo.InsertRejects(context.Background(), "stg_rejects", nil)
	if err != nil || n != 0 {
		t.Fatalf("empty insert: n=%d err=%v", n, err)
	}
}

func TestNewRepositoryEmptyDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
