// Package postgres implements the warehouse repository on Postgres using
// pgx v5. Bulk loads use the COPY protocol; the staging swap runs DROP plus
// ALTER TABLE RENAME inside one transaction, so readers see either the old
// or the new output, never a partial one.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recon/internal/catalog"
	"recon/internal/schema"
	"recon/internal/warehouse"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string // connection string for pgxpool
	Schema string // schema scope for discovery and write-path names
}

// Repository is a Postgres-backed implementation of warehouse.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// newRepository is a test hook; tests may replace it to avoid a live pool.
var newRepository = NewRepository

// NewRepository opens a pgx pool against cfg.DSN.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// Tables lists base tables in the schema scope via information_schema.
// Metadata only; no source data is scanned.
func (r *Repository) Tables(ctx context.Context) ([]catalog.TableRef, error) {
	const q = `
		SELECT table_catalog, table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := r.pool.Query(ctx, q, r.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", r.cfg.Schema, err)
	}
	defer rows.Close()

	refs := make([]catalog.TableRef, 0, 16)
	for rows.Next() {
		var ref catalog.TableRef
		if err := rows.Scan(&ref.Catalog, &ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan table ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Select issues a projection scan with the full declared column list.
func (r *Repository) Select(ctx context.Context, ref catalog.TableRef, columns []string) (warehouse.Rows, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM %s",
		strings.Join(quoteAll(columns), ", "),
		quoteIdent(ref.Schema)+"."+quoteIdent(ref.Name),
	)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", ref.FQN(), err)
	}
	return rows, nil
}

// CreateTable creates the table in the schema scope with the given contract.
func (r *Repository) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, quoteIdent(c.Name)+" "+sqlType(c.Kind))
	}
	q := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", r.qualify(table), strings.Join(defs, ",\n  "))
	if _, err := r.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// BulkInsert uses the COPY protocol.
func (r *Repository) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{r.cfg.Schema, table},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// SwapTable drops any prior target and renames staging into place inside one
// transaction. Postgres DDL is transactional, so the replace is atomic.
func (r *Repository) SwapTable(ctx context.Context, staging, target string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+r.qualify(target)); err != nil {
		return fmt.Errorf("drop %s: %w", target, err)
	}
	rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", r.qualify(staging), quoteIdent(target))
	if _, err := tx.Exec(ctx, rename); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", staging, target, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

// DropTable removes table if it exists.
func (r *Repository) DropTable(ctx context.Context, table string) error {
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS "+r.qualify(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

func (r *Repository) qualify(table string) string {
	return quoteIdent(r.cfg.Schema) + "." + quoteIdent(table)
}

// sqlType maps semantic kinds onto Postgres types.
func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindBool:
		return "BOOLEAN"
	case schema.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// quoteIdent quotes a single identifier segment, escaping embedded quotes.
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
