// This adapter wires the Postgres backend into the warehouse factory by
// registering a constructor at init time, so callers obtain a Repository via
// warehouse.New(...) without importing this package directly.
package postgres

import (
	"context"

	"recon/internal/warehouse"
)

// wrappedRepo implements warehouse.Repository by delegating to the concrete
// *Repository while providing a Close that calls the pool close function.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ warehouse.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	warehouse.Register("postgres", func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Schema: cfg.Schema})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
