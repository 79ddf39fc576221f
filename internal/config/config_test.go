package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleYAML = `
defaults:
  db_url: postgresql://u:p@localhost:5432/retail
  storage: SQLite
  reject_table: rejects
sources:
  - name: fashion_sales
    type: CSV
    path: data/sales.csv
    target_table: stg_fashion_sales
    schema:
      " Customer Reference ID ": int
      purchase amount (usd): float
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNormalizes(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(cfg.Sources))
	}
	src := cfg.Sources[0]

	if src.Type != "csv" {
		t.Errorf("type = %q, want csv", src.Type)
	}
	if src.Schema["customer reference id"] != "int" {
		t.Errorf("schema column name not normalized: %v", src.Schema)
	}

	// Defaults fill in the fashion-retail mapping and business key.
	if got := src.ColumnMap["purchase amount (usd)"]; got != "purchase_amount_usd" {
		t.Errorf("default column_map missing: %v", src.ColumnMap)
	}
	wantKeys := []string{"customer_reference_id", "item_purchased", "date_purchase"}
	if !reflect.DeepEqual(src.KeyColumns, wantKeys) {
		t.Errorf("key columns = %v, want %v", src.KeyColumns, wantKeys)
	}
}

func TestLoadKeepsExplicitMapping(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - name: s
    type: csv
    path: p.csv
    target_table: t
    column_map:
      " A ": col_a
    key_columns: [" col_a "]
`))
	if err != nil {
		t.Fatal(err)
	}
	src := cfg.Sources[0]
	if src.ColumnMap["a"] != "col_a" {
		t.Errorf("column_map = %v", src.ColumnMap)
	}
	if !reflect.DeepEqual(src.KeyColumns, []string{"col_a"}) {
		t.Errorf("key_columns = %v", src.KeyColumns)
	}
}

func TestDSNPrecedence(t *testing.T) {
	cfg := Config{Defaults: Defaults{DBURL: "from-file"}}

	t.Setenv(EnvDBURL, "from-env")
	if dsn, err := cfg.DSN(); err != nil || dsn != "from-env" {
		t.Fatalf("DSN = %q, %v; want env value", dsn, err)
	}

	t.Setenv(EnvDBURL, "")
	if dsn, err := cfg.DSN(); err != nil || dsn != "from-file" {
		t.Fatalf("DSN = %q, %v; want file value", dsn, err)
	}

	empty := Config{}
	t.Setenv(EnvDBURL, "")
	if _, err := empty.DSN(); err == nil {
		t.Fatal("expected error when no DSN is configured")
	}
}

func TestDefaultsAccessors(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if k := cfg.StorageKind(); k != "sqlite" {
		t.Errorf("StorageKind = %q, want sqlite", k)
	}
	if rt := cfg.RejectTable(); rt != "rejects" {
		t.Errorf("RejectTable = %q, want rejects", rt)
	}

	empty := Config{}
	if k := empty.StorageKind(); k != "postgres" {
		t.Errorf("default StorageKind = %q, want postgres", k)
	}
	if rt := empty.RejectTable(); rt != "stg_rejects" {
		t.Errorf("default RejectTable = %q, want stg_rejects", rt)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "sources: {not a list}")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
