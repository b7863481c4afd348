// Package sqlite implements a SQLite-backed warehouse.Repository using
// database/sql. Bulk loads run as prepared INSERTs inside a single
// transaction; SQLite has no dedicated bulk-load API like Postgres COPY, but
// transactions keep performance acceptable for moderate volumes.
//
// SQLite has a single flat namespace, so the configured schema is recorded on
// discovered tables for display only and is never used to qualify names.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver; replace with your preferred driver if desired.
	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"recon/internal/catalog"
	"recon/internal/schema"
	"recon/internal/warehouse"
)

// Config holds SQLite connection settings.
type Config struct {
	// DSN is passed directly to database/sql; for example:
	//
	//	"file:recon.db?cache=shared"
	//	"recon.db"
	//	":memory:"
	DSN    string
	Schema string
}

// Repository is a SQLite-backed implementation of warehouse.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

var newRepository = NewRepository

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Ping with a short timeout to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Tables lists user tables from sqlite_master, skipping SQLite's internal
// bookkeeping tables.
func (r *Repository) Tables(ctx context.Context) ([]catalog.TableRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	refs := []catalog.TableRef{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scan table name: %w", err)
		}
		refs = append(refs, catalog.TableRef{Schema: r.cfg.Schema, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	return refs, nil
}

// Select streams the given columns from a table.
func (r *Repository) Select(ctx context.Context, ref catalog.TableRef, columns []string) (warehouse.Rows, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("sqlite: select: columns must not be empty")
	}
	q := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoteAll(columns), ", "), quoteIdent(ref.Name))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select from %s: %w", ref.Name, err)
	}
	return sqlRows{rows}, nil
}

// CreateTable creates the table with columns mapped onto SQLite's storage
// classes. Dates are stored as TEXT in ISO form.
func (r *Repository) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(c.Name), sqlType(c.Kind)))
	}
	q := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return nil
}

// BulkInsert loads rows using a prepared single-row INSERT inside one
// transaction.
func (r *Repository) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: bulk insert: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoteAll(columns), ", "),
		strings.Join(placeholders, ", "))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: bulk insert: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, normalizeRow(row)...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// SwapTable replaces target with staging atomically within a transaction.
func (r *Repository) SwapTable(ctx context.Context, staging, target string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(target))); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: drop %s: %w", target, err)
	}
	q := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(staging), quoteIdent(target))
	if _, err := tx.ExecContext(ctx, q); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: rename %s to %s: %w", staging, target, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit swap: %w", err)
	}
	return nil
}

// DropTable drops the table if it exists.
func (r *Repository) DropTable(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))); err != nil {
		return fmt.Errorf("sqlite: drop table %s: %w", table, err)
	}
	return nil
}

// sqlRows adapts *sql.Rows to warehouse.Rows, whose Close returns nothing.
type sqlRows struct {
	*sql.Rows
}

func (s sqlRows) Close() { _ = s.Rows.Close() }

func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindBool:
		return "INTEGER"
	case schema.KindDate:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// normalizeRow converts values the driver cannot bind directly. Dates become
// ISO strings and booleans become 0/1 so round trips stay comparable.
func normalizeRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch t := v.(type) {
		case time.Time:
			out[i] = t.Format(schema.DateLayout)
		case *time.Time:
			if t == nil {
				out[i] = nil
			} else {
				out[i] = t.Format(schema.DateLayout)
			}
		case bool:
			if t {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		default:
			out[i] = v
		}
	}
	return out
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = quoteIdent(id)
	}
	return out
}
