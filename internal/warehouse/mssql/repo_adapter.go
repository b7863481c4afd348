package mssql

import (
	"context"

	"recon/internal/warehouse"
)

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
	warehouse.Register("mssql", func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Schema: cfg.Schema})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
