// Package classify implements the reconciliation status rule engine.
//
// Each joined budget+spend row is evaluated once through an ordered,
// first-match-wins predicate chain. There is no row-to-row state: a row's
// label is a pure function of its own fields and the injected evaluation
// context (the "as of" date plus business parameters), so the classifier is
// deterministic and unit-testable without touching the system clock.
//
// Two divergent rule chains exist for the same row shape (see rulesets.go);
// they are registered by name and selected by configuration. Every chain
// ends in a catch-all rule, so classification never fails on a well-formed
// row: an unexpected field combination is routed to the "Unrecognized"
// label for operator visibility rather than dropped or raised.
package classify

import (
	"strings"
	"time"

	"recon/internal/schema"
)

// Severity tells operators how to read a label. Alert labels are the ones a
// daily report should surface first; info labels are notable but not urgent.
type Severity string

const (
	SeverityAlert Severity = "alert"
	SeverityInfo  Severity = "info"
	SeverityOK    Severity = "ok"
)

// Params are the configurable business parameters of the pacing chain.
// They are injected rather than hardcoded because the business has not
// confirmed them as permanent constants.
type Params struct {
	// GraceDays is the tolerance after a budget's start date before a
	// zero-spend row is treated as delayed rather than merely unset.
	GraceDays int

	// PacingMargin is how far the spend/budget ratio may drift from the
	// elapsed-time ratio before a row is flagged as under- or over-pacing.
	PacingMargin float64
}

// DefaultParams returns the business defaults in use today.
func DefaultParams() Params {
	return Params{GraceDays: 3, PacingMargin: 0.3}
}

// Eval is the evaluation context for one classification pass. AsOf is the
// wall-clock date of the run; the engine is re-run daily, so the same data
// may classify differently day over day.
type Eval struct {
	AsOf   time.Time
	Params Params
}

// Rule is one predicate+label pair in a chain. Name is a stable machine
// identifier (used in logs and tests); Label is the human-readable status.
type Rule struct {
	Name     string
	Label    string
	Severity Severity
	When     func(r *schema.ReconRow, ev Eval) bool
}

// RuleSet is a named, ordered chain. The final rule must be a catch-all
// (nil When), which Classify treats as always matching.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// Classify evaluates the chain strictly in order and returns the first rule
// whose predicate holds. The catch-all terminal rule guarantees a result.
func (s RuleSet) Classify(r *schema.ReconRow, ev Eval) Rule {
	for _, rule := range s.Rules {
		if rule.When == nil || rule.When(r, ev) {
			return rule
		}
	}
	// Unreachable for registered sets; kept so a hand-built chain without a
	// catch-all still yields the sentinel instead of a zero Rule.
	return Rule{Name: "unrecognized", Label: LabelUnrecognized, Severity: SeverityAlert}
}

/// Ratio is spend/budget computed with safe-division semantics: when spend is
// absent or the budget denominator is missing or non-positive, ok is false
// and ratio-dependent predicates simply do not fire. Division never panics.
func Ratio(r *schema.ReconRow) (float64, bool) {
	if r.Spend == nil || r.ActualBudget == nil || *r.ActualBudget <= 0 {
		return 0, false
	}
	return *r.Spend / *r.ActualBudget, true
}

// hasBudget reports whether an authoritative budget exists for the row.
// A non-positive or NULL actual budget counts as "no budget".
func hasBudget(r *schema.ReconRow) bool {
	return r.ActualBudget != nil && *r.ActualBudget > 0
}

// spendAmount treats an absent spend side as zero for magnitude checks.
func spendAmount(r *schema.ReconRow) float64 {
	if r.Spend == nil {
		return 0
	}
	return *r.Spend
}

// active reports whether the underlying campaign carried the live marker at
// observation time.
func active(r *schema.ReconRow) bool {
	return r.SpendStatus != nil && strings.EqualFold(strings.TrimSpace(*r.SpendStatus), "active")
}

// statusRecorded distinguishes "no spend row at all" from a recorded row,
// which the grace-window rules care about.
func statusRecorded(r *schema.ReconRow) bool {
	return r.SpendStatus != nil
}

// daysBetween returns whole calendar days from a to b (negative when b is
// earlier), comparing dates only.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad) / (24 * time.Hour))
}

// dateOnly truncates to a UTC calendar date for comparisons against the
// budget window.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
