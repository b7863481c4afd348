// Package warehouse contains the backend-agnostic warehouse contract and the
// factory used to construct concrete backends by kind.
//
// The engine never branches on a backend: discovery, projection scans, bulk
// loads, and the staging swap all go through Repository, and each backend
// package registers a constructor for its kind at init time. Importing
// recon/internal/warehouse/all (typically as a blank import in the wiring
// layer) makes every built-in backend available.
package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"recon/internal/catalog"
	"recon/internal/schema"
)

// Config selects and parameterizes a backend.
type Config struct {
	// Kind selects the backend implementation: "postgres", "sqlite",
	// "mssql", or "mysql" for the built-ins.
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Catalog is the database/project scope, where the backend has that
	// namespace level. Informational for discovery results.
	Catalog string

	// Schema is the schema/dataset scope. Discovery lists base tables in
	// this schema, and all write-path table names are resolved inside it.
	Schema string
}

// Rows is the minimal cursor surface shared by pgx and database/sql rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Repository is the warehouse contract consumed by the engine.
//
// Read path: Tables is a metadata-only catalog query (no data scan) and
// Select issues a projection scan with an explicit ordered column list, so a
// source table whose shape has drifted fails loudly as a query error.
//
// Write path: the materializer creates a staging table, bulk-loads it, and
// swaps it into place. SwapTable must be atomic with respect to readers
// wherever the backend allows (transactional DDL or an atomic rename).
type Repository interface {
	// Tables returns every base table in the configured schema scope.
	// An empty result is normal, not an error.
	Tables(ctx context.Context) ([]catalog.TableRef, error)

	// Select streams the named columns, in order, from one source table.
	Select(ctx context.Context, ref catalog.TableRef, columns []string) (Rows, error)

	// CreateTable creates table (resolved in the schema scope) with the
	// given column contract, mapping semantic kinds to dialect types.
	CreateTable(ctx context.Context, table string, cols []schema.Column) error

	// BulkInsert appends rows (aligned with columns) using the backend's
	// most efficient bulk primitive and returns the inserted count.
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// SwapTable replaces target with staging, dropping any prior target.
	SwapTable(ctx context.Context, staging, target string) error

	// DropTable removes table if it exists.
	DropTable(ctx context.Context, table string) error

	Close()
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds (or replaces) a backend factory for kind. It is called from
// backend packages' init functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs the Repository registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("warehouse: no backend registered for kind=%q (have %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}
