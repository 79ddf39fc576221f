// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. SQLite has no dedicated bulk API, so upserts run as a
// prepared per-row INSERT ... ON CONFLICT DO UPDATE inside one transaction,
// which keeps the batch atomic and performance acceptable for moderate
// volumes. Useful for local runs and hermetic tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // CGO-free driver; alternative: github.com/mattn/go-sqlite3

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is passed directly to database/sql, e.g. "file:etl.db?cache=shared"
	// or ":memory:".
	DSN string
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite handle and returns a Repository plus a Close
// function for cleanup. database/sql opens connections lazily, so nothing is
// touched on disk until the first write.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Upsert implements storage.Repository.Upsert.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns []string, ds records.Dataset) (int64, error) {
	if ds.Empty() {
		return 0, nil
	}

	tableCols, err := r.tableColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	used, err := storage.UsableColumns(table, ds.Columns, tableCols, keyColumns)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildUpsertSQL(table, used, keyColumns))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range storage.RowValues(used, ds.Rows) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: upsert %s: %w", table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return written, nil
}

// InsertRejects implements storage.Repository.InsertRejects.
func (r *Repository) InsertRejects(ctx context.Context, table string, recs []reject.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildRejectSQL(table))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare reject insert: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range storage.RejectRows(recs) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: insert rejects %s: %w", table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return written, nil
}

// Close closes the database handle.
func (r *Repository) Close() { _ = r.db.Close() }

func (r *Repository) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: table %s does not exist or has no columns", table)
	}
	return cols, nil
}

// buildUpsertSQL renders the per-row upsert statement:
//
//	INSERT INTO t (a, b) VALUES (?, ?)
//	ON CONFLICT(a) DO UPDATE SET b = excluded.b
func buildUpsertSQL(table string, cols, keyColumns []string) string {
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s)",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(keyColumns, ", "),
	)

	updates := storage.NonKeyColumns(cols, keyColumns)
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	b.WriteString(" DO UPDATE SET ")
	for i, c := range updates {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = excluded.%s", c, c)
	}
	return b.String()
}

func buildRejectSQL(table string) string {
	placeholders := make([]string, len(storage.RejectColumns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(storage.RejectColumns, ", "),
		strings.Join(placeholders, ", "),
	)
}
