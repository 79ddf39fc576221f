// Package storage contains the storage-agnostic contracts for persisting
// cleaned rows and reject records, plus the backend factory. Concrete
// backends (postgres, sqlite, mssql) register themselves at init time via
// their adapter files; callers select one by kind and stay backend-agnostic.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
)

// Config holds backend-agnostic connection settings. Per-write settings
// (target table, key columns) travel with each call because one repository
// serves every configured source.
type Config struct {
	// Kind selects the registered backend, e.g. "postgres".
	Kind string

	// DSN is the backend connection string.
	DSN string
}

// Repository is the write-side contract of the pipeline.
//
// Upsert writes the dataset into table as a single transaction: rows whose
// composite key already exists have all non-key columns overwritten, rows
// whose key is new are inserted. Only columns present in both the dataset and
// the live table are written; an empty intersection is a caller error. An
// empty dataset is a no-op that opens no connection. On failure the whole
// batch rolls back and the error surfaces to the caller.
//
// InsertRejects appends one row per reject record into table. Writes are
// append-only and batch best-effort; an empty input is a no-op.
type Repository interface {
	Upsert(ctx context.Context, table string, keyColumns []string, ds records.Dataset) (int64, error)
	InsertRejects(ctx context.Context, table string, recs []reject.Record) (int64, error)
	Close()
}

// FactoryFn constructs a backend repository from a Config.
type FactoryFn func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]FactoryFn{}
)

// Register registers (or replaces) a backend factory for the given kind. It
// is typically called from backend packages' init() functions.
func Register(kind string, fn FactoryFn) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New constructs the repository registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return fn(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// UsableColumns intersects the dataset's columns with the live table's
// column set, preserving dataset order, and verifies that every key column
// survived the intersection. An empty intersection is a caller error:
// reported, never silently ignored.
func UsableColumns(table string, dsColumns, tableColumns, keyColumns []string) ([]string, error) {
	known := make(map[string]struct{}, len(tableColumns))
	for _, c := range tableColumns {
		known[c] = struct{}{}
	}

	used := make([]string, 0, len(dsColumns))
	for _, c := range dsColumns {
		if _, ok := known[c]; ok {
			used = append(used, c)
		}
	}
	if len(used) == 0 {
		return nil, fmt.Errorf("no overlapping columns between dataset and table %s", table)
	}

	inUsed := make(map[string]struct{}, len(used))
	for _, c := range used {
		inUsed[c] = struct{}{}
	}
	for _, k := range keyColumns {
		if _, ok := inUsed[k]; !ok {
			return nil, fmt.Errorf("key column %q missing from dataset/table %s column intersection", k, table)
		}
	}
	return used, nil
}

// RowValues flattens records into driver-ready positional rows aligned to
// cols. Missing cells become nil.
func RowValues(cols []string, recs []records.Record) [][]any {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = rec[c]
		}
		rows = append(rows, row)
	}
	return rows
}

// NonKeyColumns returns the columns of cols not listed in keyColumns,
// preserving order. These are the columns an upsert overwrites on conflict.
func NonKeyColumns(cols, keyColumns []string) []string {
	keys := make(map[string]struct{}, len(keyColumns))
	for _, k := range keyColumns {
		keys[k] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := keys[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// RejectColumns is the fixed column order of the stg_rejects table.
var RejectColumns = []string{"source_name", "reason", "payload", "rejected_at"}

// RejectRows flattens reject records into positional rows aligned to
// RejectColumns.
func RejectRows(recs []reject.Record) [][]any {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{r.SourceName, r.Reason, r.Payload, r.RejectedAt})
	}
	return rows
}
