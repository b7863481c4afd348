// Package source reads the discovered budget and spend tables into typed
// records. Tables are scanned concurrently with a bounded worker group, and
// results are stitched back together in discovery order so a run over the
// same warehouse state is deterministic.
package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"recon/internal/catalog"
	"recon/internal/schema"
	"recon/internal/warehouse"
)

// DefaultWorkers bounds concurrent table scans when the caller passes zero.
const DefaultWorkers = 4

// Scanner reads source tables through a warehouse repository.
type Scanner struct {
	Repo    warehouse.Repository
	Workers int
	Verbose bool
}

// ScanBudget reads every table in refs against the budget column contract.
// Zero tables is a valid state and yields a typed empty relation.
func (s *Scanner) ScanBudget(ctx context.Context, refs []catalog.TableRef) ([]schema.BudgetRecord, error) {
	if len(refs) == 0 {
		return schema.EmptyBudget(), nil
	}
	perTable := make([][]schema.BudgetRecord, len(refs))
	err := s.each(ctx, refs, schema.Names(schema.BudgetColumns()), func(i int, vals []any) error {
		rec, err := budgetFromValues(vals)
		if err != nil {
			return err
		}
		perTable[i] = append(perTable[i], rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := schema.EmptyBudget()
	for i, recs := range perTable {
		if s.Verbose {
			log.Printf("source: table=%s kind=budget rows=%d", refs[i].FQN(), len(recs))
		}
		out = append(out, recs...)
	}
	return out, nil
}

// ScanSpend reads every table in refs against the raw spend column contract.
func (s *Scanner) ScanSpend(ctx context.Context, refs []catalog.TableRef) ([]schema.SpendRecord, error) {
	if len(refs) == 0 {
		return schema.EmptySpend(), nil
	}
	perTable := make([][]schema.SpendRecord, len(refs))
	err := s.each(ctx, refs, schema.Names(schema.SpendColumns()), func(i int, vals []any) error {
		rec, err := spendFromValues(vals)
		if err != nil {
			return err
		}
		perTable[i] = append(perTable[i], rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := schema.EmptySpend()
	for i, recs := range perTable {
		if s.Verbose {
			log.Printf("source: table=%s kind=spend rows=%d", refs[i].FQN(), len(recs))
		}
		out = append(out, recs...)
	}
	return out, nil
}

// each runs one bounded goroutine per table, handing every scanned value row
// to emit with the table's index. Appends into perTable slices are safe
// because each goroutine owns exactly one index.
func (s *Scanner) each(ctx context.Context, refs []catalog.TableRef, columns []string, emit func(i int, vals []any) error) error {
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range refs {
		g.Go(func() error {
			rows, err := s.Repo.Select(ctx, ref, columns)
			if err != nil {
				return fmt.Errorf("scan %s: %w", ref.FQN(), err)
			}
			defer rows.Close()

			dest := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for j := range dest {
				ptrs[j] = &dest[j]
			}
			for rows.Next() {
				if err := rows.Scan(ptrs...); err != nil {
					return fmt.Errorf("scan %s: %w", ref.FQN(), err)
				}
				if err := emit(i, dest); err != nil {
					return fmt.Errorf("scan %s: %w", ref.FQN(), err)
				}
			}
			if err := rows.Err(); err != nil {
				return fmt.Errorf("scan %s: %w", ref.FQN(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// budgetFromValues maps one scanned row, in BudgetColumns order, to a record.
// Malformed numerics or dates are fatal: a source table that no longer
// matches the contract should stop the run, not silently skew totals.
func budgetFromValues(vals []any) (schema.BudgetRecord, error) {
	var rec schema.BudgetRecord
	var err error
	if rec.Key, err = keyFromValues(vals); err != nil {
		return rec, err
	}
	conv := fieldConverter(vals[10:], schema.BudgetColumns()[10:])
	conv.intField(&rec.Year)
	conv.timeField(&rec.StartDate)
	conv.timeField(&rec.EndDate)
	conv.floatField(&rec.InitialBudget)
	conv.floatField(&rec.AdjustedBudget)
	conv.floatField(&rec.AdditionalBudget)
	conv.floatField(&rec.ActualBudget)
	conv.floatField(&rec.GroupedMarketingBudget)
	conv.floatField(&rec.GroupedSupplierBudget)
	conv.floatField(&rec.GroupedRetailBudget)
	conv.floatField(&rec.GroupedCustomerBudget)
	conv.floatField(&rec.GroupedRecruitmentBudget)
	return rec, conv.err
}

// spendFromValues maps one scanned row, in SpendColumns order, to a record.
func spendFromValues(vals []any) (schema.SpendRecord, error) {
	var rec schema.SpendRecord
	var err error
	if rec.Key, err = keyFromValues(vals); err != nil {
		return rec, err
	}
	conv := fieldConverter(vals[10:], schema.SpendColumns()[10:])
	conv.stringField(&rec.Personnel)
	conv.floatField(&rec.Spend)
	conv.stringField(&rec.Status)
	return rec, conv.err
}

// keyFromValues maps the shared 10-column dimensional prefix.
func keyFromValues(vals []any) (schema.Key, error) {
	var k schema.Key
	conv := fieldConverter(vals, schema.BudgetColumns()[:10])
	conv.stringField(&k.BudgetGroup1)
	conv.stringField(&k.BudgetGroup2)
	conv.stringField(&k.Region)
	conv.stringField(&k.CategoryLevel1)
	conv.stringField(&k.TrackGroup)
	conv.stringField(&k.PillarGroup)
	conv.stringField(&k.ContentGroup)
	conv.stringField(&k.Platform)
	conv.stringField(&k.Objective)
	if conv.err == nil {
		k.Month, conv.err = toMonth(vals[9])
	}
	return k, conv.err
}

// converter walks a value slice in column order, stopping at the first field
// that fails to coerce and recording which column it was.
type converter struct {
	vals []any
	cols []schema.Column
	pos  int
	err  error
}

func fieldConverter(vals []any, cols []schema.Column) *converter {
	return &converter{vals: vals, cols: cols}
}

func (c *converter) colName() string {
	if c.pos < len(c.cols) {
		return c.cols[c.pos].Name
	}
	return fmt.Sprintf("column %d", c.pos)
}

func (c *converter) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", c.colName(), err)
}

func (c *converter) stringField(dst **string) {
	if c.err != nil {
		return
	}
	v, err := toStringPtr(c.vals[c.pos])
	c.err = c.wrap(err)
	*dst = v
	c.pos++
}

func (c *converter) floatField(dst **float64) {
	if c.err != nil {
		return
	}
	v, err := toFloatPtr(c.vals[c.pos])
	c.err = c.wrap(err)
	*dst = v
	c.pos++
}

func (c *converter) intField(dst **int64) {
	if c.err != nil {
		return
	}
	v, err := toIntPtr(c.vals[c.pos])
	c.err = c.wrap(err)
	*dst = v
	c.pos++
}

func (c *converter) timeField(dst **time.Time) {
	if c.err != nil {
		return
	}
	v, err := toTimePtr(c.vals[c.pos])
	c.err = c.wrap(err)
	*dst = v
	c.pos++
}
