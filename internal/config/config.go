// Package config defines the canonical, JSON-serializable configuration model
// for a reconciliation run. It is intentionally small and explicit so that run
// files can be loaded from disk and passed through the program without glue
// code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files
//     under configs/runs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library.
//
// Example (trimmed):
//
//	{
//	  "job": "monthly-recon",
//	  "warehouse": { "kind": "postgres", "dsn": "postgresql://...", "schema": "analytics" },
//	  "sources": {
//	    "budget": { "prefixes": ["budget_"] },
//	    "spend":  { "prefixes": ["spend_"], "excludes": ["_archive"] }
//	  },
//	  "classifier": { "rule_set": "pacing" },
//	  "output": { "table": "budget_spend_recon" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"recon/internal/catalog"
	"recon/internal/classify"
)

// Run describes one full reconciliation run in JSON. It is the top-level
// object decoded from a run file (e.g., configs/runs/*.json).
type Run struct {
	// Job names the run for logs and metrics labeling.
	Job string `json:"job"`

	// Warehouse selects and parameterizes the backend holding both the
	// source tables and the published output.
	Warehouse Warehouse `json:"warehouse"`

	// Sources declares the naming conventions that discover budget and
	// spend tables inside the warehouse schema.
	Sources Sources `json:"sources"`

	// Aggregate controls how raw spend facts collapse to the monthly grain.
	Aggregate Aggregate `json:"aggregate"`

	// Classifier selects the status rule set and its tunables.
	Classifier Classifier `json:"classifier"`

	// Output names the published reconciliation table.
	Output Output `json:"output"`

	Runtime RuntimeConfig `json:"runtime"`
}

// Warehouse selects the backend used for discovery, scans, and publishing.
type Warehouse struct {
	// Kind selects the backend implementation: "postgres", "sqlite",
	// "mssql", or "mysql".
	Kind string `json:"kind"`

	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Catalog is the database/project scope where the backend has one.
	Catalog string `json:"catalog"`

	// Schema is the schema/dataset that discovery lists and the output
	// table is created in.
	Schema string `json:"schema"`
}

// Sources holds the two source-domain naming conventions.
type Sources struct {
	Budget Domain `json:"budget"`
	Spend  Domain `json:"spend"`
}

// Domain is the JSON shape of one source naming convention. Each list is an
// any-of group; a table name must satisfy every non-empty group to match.
type Domain struct {
	Prefixes []string `json:"prefixes"`
	Suffixes []string `json:"suffixes"`
	Contains []string `json:"contains"`
	Excludes []string `json:"excludes"`
}

// Pattern converts the domain into the matcher used by discovery.
func (d Domain) Pattern() catalog.Pattern {
	return catalog.Pattern{
		Prefixes: d.Prefixes,
		Suffixes: d.Suffixes,
		Contains: d.Contains,
		Excludes: d.Excludes,
	}
}

// empty reports whether no matching constraint is configured at all.
func (d Domain) empty() bool {
	return len(d.Prefixes) == 0 && len(d.Suffixes) == 0 && len(d.Contains) == 0
}

// Aggregate controls the monthly spend aggregation.
type Aggregate struct {
	// Personnel adds the personnel attribute to the aggregation grain.
	Personnel bool `json:"personnel"`

	// KeepNonPositive keeps zero and negative spend facts. By default they
	// are dropped before aggregation.
	KeepNonPositive bool `json:"keep_non_positive"`
}

// Classifier selects the status rule set and overrides its tunables.
// Nil pointer fields fall back to the rule-set defaults.
type Classifier struct {
	// RuleSet names a registered rule set. Empty selects the default.
	RuleSet string `json:"rule_set"`

	// GraceDays overrides the window, in days after the start date, during
	// which a missing status marker is tolerated.
	GraceDays *int `json:"grace_days"`

	// PacingMargin overrides the +/- band around expected spend progress
	// within which pacing is considered on track.
	PacingMargin *float64 `json:"pacing_margin"`
}

// Params resolves the classifier tunables against the defaults.
func (c Classifier) Params() classify.Params {
	p := classify.DefaultParams()
	if c.GraceDays != nil {
		p.GraceDays = *c.GraceDays
	}
	if c.PacingMargin != nil {
		p.PacingMargin = *c.PacingMargin
	}
	return p
}

// Output names the published table.
type Output struct {
	// Table is the bare table name, resolved inside the warehouse schema.
	Table string `json:"table"`
}

// RuntimeConfig controls concurrency and batching.
type RuntimeConfig struct {
	// ScanWorkers bounds concurrent source-table scans. Zero uses the
	// scanner default.
	ScanWorkers int `json:"scan_workers"`

	// BatchSize is the bulk-insert batch size for publishing. Zero uses
	// the materializer default.
	BatchSize int `json:"batch_size"`
}

// Load reads and decodes a run file. Unknown fields are rejected so a typo in
// a run file surfaces as a decode error instead of a silently ignored knob.
func Load(path string) (Run, error) {
	var r Run
	f, err := os.Open(path)
	if err != nil {
		return r, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return r, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return r, nil
}
