// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"recon/internal/catalog"
	"recon/internal/classify"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Run.
//
// Path is a dotted path into the config (e.g. "warehouse.kind",
// "classifier.grace_days"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateRun performs static validation / linting of a Run.
//
// It does not mutate the run. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	r, err := config.Load(path)
//	if err != nil { ... }
//	issues := config.ValidateRun(r)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateWarehouse(r.Warehouse)...)
	issues = append(issues, validateSources(r.Sources)...)
	issues = append(issues, validateClassifier(r.Classifier)...)
	issues = append(issues, validateOutput(r.Output)...)
	issues = append(issues, validateRuntime(r.Runtime)...)

	return issues
}

// validateWarehouse validates backend selection and connection settings.
func validateWarehouse(w Warehouse) []Issue {
	var issues []Issue

	if strings.TrimSpace(w.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.kind",
			Message:  "warehouse.kind must not be empty",
		})
		return issues
	}

	// Known kinds. Unknown kinds are warnings (for forward compatibility
	// with externally registered backends).
	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
		"mssql":    {},
		"mysql":    {},
	}
	if _, ok := known[w.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.kind",
			Message:  fmt.Sprintf("unknown warehouse kind %q; ensure a matching backend is registered", w.Kind),
		})
	}

	if strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.dsn",
			Message:  "warehouse.dsn must not be empty",
		})
	}

	return issues
}

// validateSources validates the two naming conventions.
func validateSources(s Sources) []Issue {
	var issues []Issue

	if s.Budget.empty() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sources.budget",
			Message:  "budget domain has no prefixes, suffixes, or contains tokens; every table in the schema will match",
		})
	}
	if s.Spend.empty() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sources.spend",
			Message:  "spend domain has no prefixes, suffixes, or contains tokens; every table in the schema will match",
		})
	}

	return issues
}

// validateClassifier checks the rule-set name and tunable ranges.
func validateClassifier(c Classifier) []Issue {
	var issues []Issue

	if c.RuleSet != "" {
		if _, err := classify.Lookup(c.RuleSet); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "classifier.rule_set",
				Message:  fmt.Sprintf("unknown rule set %q (have %v)", c.RuleSet, classify.Names()),
			})
		}
	}
	if c.GraceDays != nil && *c.GraceDays < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "classifier.grace_days",
			Message:  fmt.Sprintf("grace_days=%d; must not be negative", *c.GraceDays),
		})
	}
	if c.PacingMargin != nil && (*c.PacingMargin <= 0 || *c.PacingMargin >= 1) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "classifier.pacing_margin",
			Message:  fmt.Sprintf("pacing_margin=%v; must be between 0 and 1 exclusive", *c.PacingMargin),
		})
	}

	return issues
}

// validateOutput checks the published table name.
func validateOutput(o Output) []Issue {
	var issues []Issue

	table := strings.TrimSpace(o.Table)
	if table == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.table",
			Message:  "output.table must not be empty",
		})
		return issues
	}
	// Discovery skips tables carrying the marker; an output name without it
	// would be re-read as a source on the next run.
	if !strings.Contains(strings.ToLower(table), catalog.ReconMarker) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.table",
			Message: fmt.Sprintf("output table %q does not contain %q; it may be rediscovered as a source table on subsequent runs",
				table, catalog.ReconMarker),
		})
	}

	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.ScanWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.scan_workers",
			Message:  "scan_workers must not be negative",
		})
	}
	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}

	return issues
}
