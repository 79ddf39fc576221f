// Package mssql implements a Microsoft SQL Server storage.Repository using
// go-mssqldb. Upserts run as a prepared per-row MERGE inside one transaction;
// SQL Server has no ON CONFLICT clause, so MERGE carries the insert-or-update
// semantics.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository validates the DSN, opens a lazy handle, and returns a
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: open: %w", err)
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
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildMergeSQL(table, used, keyColumns))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare merge: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range storage.RowValues(used, ds.Rows) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("mssql: upsert %s: %w", table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
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
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildRejectSQL(table))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare reject insert: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range storage.RejectRows(recs) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("mssql: insert rejects %s: %w", table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return written, nil
}

// Close closes the database handle.
func (r *Repository) Close() { _ = r.db.Close() }

func (r *Repository) tableColumns(ctx context.Context, table string) ([]string, error) {
	schemaName, tableName := "dbo", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schemaName, tableName = table[:i], table[i+1:]
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		 ORDER BY ORDINAL_POSITION`,
		schemaName, tableName,
	)
	if err != nil {
		return nil, fmt.Errorf("mssql: introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("mssql: introspect %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("mssql: table %s does not exist or has no columns", table)
	}
	return cols, nil
}

// buildMergeSQL renders the per-row insert-or-update statement:
//
//	MERGE INTO [t] AS T
//	USING (SELECT @p1 AS [a], @p2 AS [b]) AS S
//	ON T.[a] = S.[a]
//	WHEN MATCHED THEN UPDATE SET T.[b] = S.[b]
//	WHEN NOT MATCHED THEN INSERT ([a],[b]) VALUES (S.[a],S.[b]);
func buildMergeSQL(table string, cols, keyColumns []string) string {
	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(msFQN(table))
	b.WriteString(" AS T USING (SELECT ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d AS %s", i+1, msIdent(c))
	}
	b.WriteString(") AS S ON ")
	for i, k := range keyColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "T.%s = S.%s", msIdent(k), msIdent(k))
	}

	updates := storage.NonKeyColumns(cols, keyColumns)
	if len(updates) > 0 {
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		for i, c := range updates {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "T.%s = S.%s", msIdent(c), msIdent(c))
		}
	}

	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	b.WriteString(strings.Join(mapIdent(cols), ","))
	b.WriteString(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "S.%s", msIdent(c))
	}
	b.WriteString(");")
	return b.String()
}

func buildRejectSQL(table string) string {
	placeholders := make([]string, len(storage.RejectColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		msFQN(table),
		strings.Join(mapIdent(storage.RejectColumns), ","),
		strings.Join(placeholders, ","),
	)
}

// msIdent bracket-quotes a single identifier segment.
func msIdent(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }

// msFQN quotes a possibly schema-qualified name like "dbo.stg_fashion_sales".
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
