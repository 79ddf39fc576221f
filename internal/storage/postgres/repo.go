// Package postgres implements a Postgres storage.Repository using pgx v5.
// Upserts use a single multi-row INSERT ... ON CONFLICT DO UPDATE inside one
// transaction; the connection is acquired from the pool per write and
// released on every exit path, so connection lifetime is bounded by the
// write, not the run.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/records"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/reject"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup. The pool connects lazily, so constructing a repository for a run
// that turns out to have nothing to write never opens a connection.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// Upsert implements storage.Repository.Upsert.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns []string, ds records.Dataset) (int64, error) {
	if ds.Empty() {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	tableCols, err := tableColumns(ctx, conn, table)
	if err != nil {
		return 0, err
	}
	used, err := storage.UsableColumns(table, ds.Columns, tableCols, keyColumns)
	if err != nil {
		return 0, err
	}

	sql := buildUpsertSQL(table, used, keyColumns, ds.Len())
	args := flatten(storage.RowValues(used, ds.Rows))

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("upsert %s: %s (%s)", table, pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("upsert %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertRejects implements storage.Repository.InsertRejects.
func (r *Repository) InsertRejects(ctx context.Context, table string, recs []reject.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	sql := buildRejectSQL(table, len(recs))
	args := flatten(storage.RejectRows(recs))
	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert rejects %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// tableColumns introspects the live column set of a possibly schema-qualified
// table via information_schema.
func tableColumns(ctx context.Context, conn *pgxpool.Conn, table string) ([]string, error) {
	schemaName, tableName := "public", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schemaName, tableName = table[:i], table[i+1:]
	}
	rows, err := conn.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		schemaName, tableName,
	)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist or has no columns", table)
	}
	return cols, nil
}

// buildUpsertSQL renders a multi-row INSERT ... ON CONFLICT statement:
//
//	INSERT INTO "t" ("a","b") VALUES ($1,$2),($3,$4)
//	ON CONFLICT ("a") DO UPDATE SET "b" = EXCLUDED."b"
//
// When every used column is part of the key the conflict action degrades to
// DO NOTHING.
func buildUpsertSQL(table string, cols, keyColumns []string, nrows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgFQN(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(mapIdent(cols), ","))
	b.WriteString(") VALUES ")
	writePlaceholders(&b, len(cols), nrows, func(n int) string {
		return fmt.Sprintf("$%d", n)
	})

	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(mapIdent(keyColumns), ","))
	b.WriteString(")")

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
		b.WriteString(pgIdent(c))
		b.WriteString(" = EXCLUDED.")
		b.WriteString(pgIdent(c))
	}
	return b.String()
}

// buildRejectSQL renders the append-only insert into the rejects table.
func buildRejectSQL(table string, nrows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgFQN(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(mapIdent(storage.RejectColumns), ","))
	b.WriteString(") VALUES ")
	writePlaceholders(&b, len(storage.RejectColumns), nrows, func(n int) string {
		return fmt.Sprintf("$%d", n)
	})
	return b.String()
}

func writePlaceholders(b *strings.Builder, ncols, nrows int, ph func(int) string) {
	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 0; c < ncols; c++ {
			if c > 0 {
				b.WriteString(",")
			}
			b.WriteString(ph(n))
			n++
		}
		b.WriteString(")")
	}
}

func flatten(rows [][]any) []any {
	if len(rows) == 0 {
		return nil
	}
	out := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.stg_fashion_sales"
// to "public"."stg_fashion_sales". If no dot is present, returns a single
// quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
