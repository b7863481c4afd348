// Package mssql implements a Microsoft SQL Server warehouse.Repository using
// the go-mssqldb bulk copy API for staging loads and sp_rename for the
// publish swap.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"recon/internal/catalog"
	"recon/internal/schema"
	"recon/internal/warehouse"
)

// Config holds SQL Server connection settings. Schema defaults to dbo.
type Config struct {
	DSN    string
	Schema string
}

// Repository is an MSSQL-backed implementation of warehouse.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

var newRepository = NewRepository

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.Schema == "" {
		cfg.Schema = "dbo"
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// Tables lists base tables in the configured schema.
func (r *Repository) Tables(ctx context.Context) ([]catalog.TableRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT TABLE_CATALOG, TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, r.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("mssql: list tables: %w", err)
	}
	defer rows.Close()

	refs := []catalog.TableRef{}
	for rows.Next() {
		var ref catalog.TableRef
		if err := rows.Scan(&ref.Catalog, &ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("mssql: scan table ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: list tables: %w", err)
	}
	return refs, nil
}

// Select streams the given columns from a table.
func (r *Repository) Select(ctx context.Context, ref catalog.TableRef, columns []string) (warehouse.Rows, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("mssql: select: columns must not be empty")
	}
	q := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(mapIdent(columns), ", "), r.qualify(ref.Name))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql: select from %s: %w", ref.Name, err)
	}
	return sqlRows{rows}, nil
}

// CreateTable creates the table with columns mapped onto SQL Server types.
func (r *Repository) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("%s %s", msIdent(c.Name), sqlType(c.Kind)))
	}
	q := fmt.Sprintf("CREATE TABLE %s (%s)", r.qualify(table), strings.Join(defs, ", "))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", table, err)
	}
	return nil
}

// BulkInsert performs a bulk copy into the table using mssql.CopyIn.
func (r *Repository) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: bulk insert: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(r.cfg.Schema+"."+table, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if len(rows[i]) != len(columns) {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql: bulk insert: row %d length %d != columns length %d", i, len(rows[i]), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// SwapTable replaces target with staging. sp_rename takes the bare new name,
// not a qualified one; both statements run in one transaction.
func (r *Repository) SwapTable(ctx context.Context, staging, target string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drop := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
		r.cfg.Schema+"."+target, r.qualify(target))
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("mssql: drop %s: %w", target, err)
	}
	if _, err := tx.ExecContext(ctx, "EXEC sp_rename @p1, @p2",
		r.cfg.Schema+"."+staging, target); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("mssql: rename %s to %s: %w", staging, target, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

// DropTable drops the table if it exists.
func (r *Repository) DropTable(ctx context.Context, table string) error {
	q := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
		r.cfg.Schema+"."+table, r.qualify(table))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: drop table %s: %w", table, err)
	}
	return nil
}

// sqlRows adapts *sql.Rows to warehouse.Rows.
type sqlRows struct {
	*sql.Rows
}

func (s sqlRows) Close() { _ = s.Rows.Close() }

func (r *Repository) qualify(table string) string {
	return msIdent(r.cfg.Schema) + "." + msIdent(table)
}

func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindBool:
		return "BIT"
	case schema.KindDate:
		return "DATE"
	default:
		return "NVARCHAR(MAX)"
	}
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// mapIdent maps a list of column names to their bracket-quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
