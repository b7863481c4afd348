// Package mysql provides a MySQL-backed warehouse.Repository. Bulk loads use
// a prepared INSERT inside a transaction; the publish swap uses RENAME TABLE,
// which MySQL executes atomically.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"recon/internal/catalog"
	"recon/internal/schema"
	"recon/internal/warehouse"
)

// Config holds MySQL connection settings. Schema is the database name; when
// empty it is taken from the DSN.
type Config struct {
	DSN    string
	Schema string
}

// Repository is a MySQL-backed implementation of warehouse.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

var newRepository = NewRepository

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsnCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if cfg.Schema == "" {
		cfg.Schema = dsnCfg.DBName
	}
	if cfg.Schema == "" {
		return nil, nil, fmt.Errorf("mysql: no database name in config or DSN")
	}
	// time.Time round trips need parseTime on the driver.
	if !dsnCfg.ParseTime {
		dsnCfg.ParseTime = true
		cfg.DSN = dsnCfg.FormatDSN()
	}
	db, err := sql.Open("mysql", cfg.DSN)
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

// Tables lists base tables in the configured database.
func (r *Repository) Tables(ctx context.Context) ([]catalog.TableRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, r.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("mysql: list tables: %w", err)
	}
	defer rows.Close()

	refs := []catalog.TableRef{}
	for rows.Next() {
		var ref catalog.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("mysql: scan table ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: list tables: %w", err)
	}
	return refs, nil
}

// Select streams the given columns from a table.
func (r *Repository) Select(ctx context.Context, ref catalog.TableRef, columns []string) (warehouse.Rows, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("mysql: select: columns must not be empty")
	}
	q := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoteAll(columns), ", "), r.qualify(ref.Name))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mysql: select from %s: %w", ref.Name, err)
	}
	return sqlRows{rows}, nil
}

// CreateTable creates the table with columns mapped onto MySQL types.
func (r *Repository) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(c.Name), sqlType(c.Kind)))
	}
	q := fmt.Sprintf("CREATE TABLE %s (%s)", r.qualify(table), strings.Join(defs, ", "))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mysql: create table %s: %w", table, err)
	}
	return nil
}

// BulkInsert loads rows using a prepared single-row INSERT inside one
// transaction.
func (r *Repository) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: bulk insert: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.qualify(table),
		strings.Join(quoteAll(columns), ", "),
		strings.Join(placeholders, ", "))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("mysql: bulk insert: row %d length %d != columns length %d", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// SwapTable replaces target with staging. RENAME TABLE is atomic in MySQL but
// cannot run inside a transaction, so the drop happens first as its own
// statement.
func (r *Repository) SwapTable(ctx context.Context, staging, target string) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", r.qualify(target))); err != nil {
		return fmt.Errorf("mysql: drop %s: %w", target, err)
	}
	q := fmt.Sprintf("RENAME TABLE %s TO %s", r.qualify(staging), r.qualify(target))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mysql: rename %s to %s: %w", staging, target, err)
	}
	return nil
}

// DropTable drops the table if it exists.
func (r *Repository) DropTable(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", r.qualify(table))); err != nil {
		return fmt.Errorf("mysql: drop table %s: %w", table, err)
	}
	return nil
}

// sqlRows adapts *sql.Rows to warehouse.Rows.
type sqlRows struct {
	*sql.Rows
}

func (s sqlRows) Close() { _ = s.Rows.Close() }

func (r *Repository) qualify(table string) string {
	return quoteIdent(r.cfg.Schema) + "." + quoteIdent(table)
}

func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindBool:
		return "TINYINT(1)"
	case schema.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func quoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func quoteAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = quoteIdent(id)
	}
	return out
}
