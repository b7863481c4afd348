// Package mart publishes classified reconciliation rows to the warehouse
// using a full-replace staging swap.
//
// The write path never mutates the live table in place: rows are bulk-loaded
// into a staging table, the row count is verified against the input, and only
// then is staging swapped over the target. A failed run leaves the previous
// target untouched.
package mart

import (
	"context"
	"fmt"
	"log"
	"time"

	"recon/internal/schema"
	"recon/internal/warehouse"
)

// DefaultBatchSize is used when the caller does not set one.
const DefaultBatchSize = 5000

// StagingSuffix is appended to the target name to form the staging table.
const StagingSuffix = "__staging"

// Materializer writes one reconciliation result set to a target table.
type Materializer struct {
	Repo      warehouse.Repository
	Target    string
	BatchSize int
}

// Materialize replaces the target table's contents with rows. It returns the
// number of rows published.
//
// On any error after staging has been created, the staging table is dropped
// on a best-effort basis and the previous target is left as it was.
func (m *Materializer) Materialize(ctx context.Context, rows []schema.ReconRow) (int64, error) {
	if m.Target == "" {
		return 0, fmt.Errorf("mart: target table must not be empty")
	}
	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	staging := m.Target + StagingSuffix
	cols := schema.ReconColumns()
	names := schema.Names(cols)

	// A prior failed run may have left staging behind.
	if err := m.Repo.DropTable(ctx, staging); err != nil {
		return 0, fmt.Errorf("mart: drop stale staging %s: %w", staging, err)
	}
	if err := m.Repo.CreateTable(ctx, staging, cols); err != nil {
		return 0, fmt.Errorf("mart: create staging %s: %w", staging, err)
	}

	cleanup := func() {
		if err := m.Repo.DropTable(context.WithoutCancel(ctx), staging); err != nil {
			log.Printf("mart: cleanup of staging %s failed: %v", staging, err)
		}
	}

	var (
		total   int64
		batches int64
		start   = time.Now()
	)
	for off := 0; off < len(rows); off += batchSize {
		end := off + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([][]any, 0, end-off)
		for i := off; i < end; i++ {
			batch = append(batch, rows[i].Values())
		}
		n, err := m.Repo.BulkInsert(ctx, staging, names, batch)
		total += n
		if err != nil {
			cleanup()
			return total, fmt.Errorf("mart: load staging %s: %w", staging, err)
		}
		batches++
		elapsed := time.Since(start)
		rps := float64(0)
		if elapsed > 0 {
			rps = float64(total) / elapsed.Seconds()
		}
		log.Printf("mart: batch #%d inserted=%d total=%d rps=%.0f elapsed=%s",
			batches, n, total, rps, elapsed.Truncate(time.Millisecond))
	}

	// Row-count conservation: the published table must hold exactly one row
	// per classified input row.
	if total != int64(len(rows)) {
		cleanup()
		return total, fmt.Errorf("mart: staged %d rows, expected %d", total, len(rows))
	}

	if err := m.Repo.SwapTable(ctx, staging, m.Target); err != nil {
		cleanup()
		return total, fmt.Errorf("mart: swap %s -> %s: %w", staging, m.Target, err)
	}
	log.Printf("mart: published table=%s rows=%d elapsed=%s",
		m.Target, total, time.Since(start).Truncate(time.Millisecond))
	return total, nil
}
