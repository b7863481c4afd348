// This file contains the reconciliation run logic. It keeps the CLI layer
// thin: it depends only on the warehouse-agnostic interfaces and never
// imports database drivers or backend-specific packages directly.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"recon/internal/aggregate"
	"recon/internal/catalog"
	"recon/internal/classify"
	"recon/internal/config"
	"recon/internal/fingerprint"
	"recon/internal/join"
	"recon/internal/mart"
	"recon/internal/metrics"
	"recon/internal/schema"
	"recon/internal/source"
	"recon/internal/warehouse"
)

// counters holds the row-flow statistics for one run.
type counters struct {
	budgetTables int
	spendTables  int
	budgetRows   int
	spendRaw     int
	spendMonthly int
	joined       int
	published    int64
}

// runtimeConfig contains the resolved concurrency and batching configuration
// for a run. Values are derived from the run config with optional environment
// variable overrides (12-factor style).
type runtimeConfig struct {
	scanWorkers int
	batchSize   int
}

type Repository = warehouse.Repository

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg warehouse.Config) (Repository, error) {
		return warehouse.New(ctx, cfg)
	}
)

// runRecon executes a full discover -> scan -> aggregate -> join -> classify
// -> publish reconciliation run against the configured warehouse.
func runRecon(ctx context.Context, run config.Run, asOf time.Time, verbose bool) error {
	rt := newRuntimeConfig(run)

	log.Printf("runtime: scan_workers=%d batch=%d", rt.scanWorkers, rt.batchSize)

	repo, err := newRepositoryFn(ctx, warehouse.Config{
		Kind:    run.Warehouse.Kind,
		DSN:     run.Warehouse.DSN,
		Catalog: run.Warehouse.Catalog,
		Schema:  run.Warehouse.Schema,
	})
	if err != nil {
		return fmt.Errorf("init warehouse: %w", err)
	}
	defer repo.Close()

	ruleSet, err := classify.Lookup(run.Classifier.RuleSet)
	if err != nil {
		return err
	}
	ev := classify.Eval{AsOf: asOf, Params: run.Classifier.Params()}

	var stats counters

	// 1) Discover source tables by naming convention. One catalog query
	// serves both domains.
	var budgetRefs, spendRefs []catalog.TableRef
	err = step(run.Job, "discover", func() error {
		tables, err := repo.Tables(ctx)
		if err != nil {
			return err
		}
		budgetRefs = catalog.Filter(tables, run.Sources.Budget.Pattern())
		spendRefs = catalog.Filter(tables, run.Sources.Spend.Pattern())
		return nil
	})
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	stats.budgetTables = len(budgetRefs)
	stats.spendTables = len(spendRefs)
	log.Printf("discover: budget_tables=%d spend_tables=%d", len(budgetRefs), len(spendRefs))
	if verbose {
		for _, ref := range budgetRefs {
			log.Printf("discover: budget table=%s", ref.FQN())
		}
		for _, ref := range spendRefs {
			log.Printf("discover: spend table=%s", ref.FQN())
		}
	}

	// 2) Scan both domains into typed relations.
	scanner := &source.Scanner{Repo: repo, Workers: rt.scanWorkers, Verbose: verbose}

	var budgets []schema.BudgetRecord
	err = step(run.Job, "scan_budget", func() error {
		budgets, err = scanner.ScanBudget(ctx, budgetRefs)
		return err
	})
	if err != nil {
		return fmt.Errorf("scan budget: %w", err)
	}
	stats.budgetRows = len(budgets)
	metrics.RecordRows(run.Job, "budget", int64(len(budgets)))

	var spendRaw []schema.SpendRecord
	err = step(run.Job, "scan_spend", func() error {
		spendRaw, err = scanner.ScanSpend(ctx, spendRefs)
		return err
	})
	if err != nil {
		return fmt.Errorf("scan spend: %w", err)
	}
	stats.spendRaw = len(spendRaw)
	metrics.RecordRows(run.Job, "spend_raw", int64(len(spendRaw)))

	// 3) Collapse raw spend to the monthly grain.
	var monthly []schema.SpendMonthly
	err = step(run.Job, "aggregate", func() error {
		monthly = aggregate.Monthly(spendRaw, aggregate.Options{
			Personnel:       run.Aggregate.Personnel,
			KeepNonPositive: run.Aggregate.KeepNonPositive,
		})
		return nil
	})
	if err != nil {
		return err
	}
	stats.spendMonthly = len(monthly)
	metrics.RecordRows(run.Job, "spend_monthly", int64(len(monthly)))

	// 4) Null-safe full outer join of budget vs monthly spend.
	var rows []schema.ReconRow
	err = step(run.Job, "join", func() error {
		rows = join.FullOuter(budgets, monthly)
		return nil
	})
	if err != nil {
		return err
	}
	stats.joined = len(rows)
	metrics.RecordRows(run.Job, "joined", int64(len(rows)))

	// 5) Classify every row; first matching rule wins.
	statusCounts := map[string]int64{}
	err = step(run.Job, "classify", func() error {
		for i := range rows {
			rule := ruleSet.Classify(&rows[i], ev)
			rows[i].ReconStatus = rule.Label
			statusCounts[rule.Label]++
		}
		return nil
	})
	if err != nil {
		return err
	}
	for label, n := range statusCounts {
		metrics.RecordStatus(run.Job, label, n)
	}
	logStatusCounts(statusCounts)

	fp := fingerprint.Rows(rows)
	log.Printf("classify: rule_set=%s as_of=%s fingerprint=%016x",
		ruleSet.Name, asOf.Format(schema.DateLayout), fp)

	// 6) Publish via staging swap.
	m := &mart.Materializer{Repo: repo, Target: run.Output.Table, BatchSize: rt.batchSize}
	err = step(run.Job, "publish", func() error {
		stats.published, err = m.Materialize(ctx, rows)
		return err
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	metrics.RecordRows(run.Job, "published", stats.published)

	logGlobalSummary(&stats)
	return nil
}

// step runs fn and records its duration and outcome under the given name.
func step(job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, name, err, time.Since(start))
	return err
}

// logStatusCounts prints per-status row counts in a stable order.
func logStatusCounts(counts map[string]int64) {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		log.Printf("classify: status=%q rows=%d", label, counts[label])
	}
}

// logGlobalSummary prints final aggregated statistics for the run.
//
// Invariants:
//
//	joined >= max(budget_rows applicable at the monthly grain, spend_monthly)
//	published == joined
func logGlobalSummary(c *counters) {
	log.Printf(
		"summary: budget_tables=%d spend_tables=%d budget_rows=%d spend_raw=%d spend_monthly=%d joined=%d published=%d",
		c.budgetTables,
		c.spendTables,
		c.budgetRows,
		c.spendRaw,
		c.spendMonthly,
		c.joined,
		c.published,
	)
}

// newRuntimeConfig resolves the runtime configuration for a run using the run
// config and environment-variable fallbacks.
func newRuntimeConfig(run config.Run) runtimeConfig {
	return runtimeConfig{
		scanWorkers: pickInt(run.Runtime.ScanWorkers, getenvInt("RECON_SCAN_WORKERS", source.DefaultWorkers)),
		batchSize:   pickInt(run.Runtime.BatchSize, getenvInt("RECON_BATCH_SIZE", mart.DefaultBatchSize)),
	}
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
