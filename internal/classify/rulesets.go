package classify

import (
	"fmt"
	"sort"
	"sync"

	"recon/internal/schema"
)

// Status labels. The output column carries exactly one of these.
const (
	LabelSpendNoBudgetRunning = "Spend without Budget (Running)"
	LabelSpendNoBudgetStopped = "Spend without Budget (Stopped)"
	LabelNoBudget             = "No Budget"
	LabelNotYetStarted        = "Not Yet Started"
	LabelNotSet               = "Not Set"
	LabelDelayed              = "Delayed"
	LabelEndedWithoutSpend    = "Ended without Spend"
	LabelOverBudgetRunning    = "Over Budget (Running)"
	LabelOverBudgetStopped    = "Over Budget (Stopped)"
	LabelCompleted            = "Completed"
	LabelNearCompletion       = "Near Completion"
	LabelLowSpend             = "Low Spend"
	LabelHighSpend            = "High Spend"
	LabelOff                  = "Off"
	LabelInProgress           = "In Progress"
	LabelNoSpend              = "No Spend"
	LabelUnrecognized         = "Unrecognized"
)

// Ratio thresholds shared by both chains. The 1.01 boundary belongs to the
// over-budget rules; (0.99, 1.01) is "completed"; [0.95, 0.99] is "near
// completion".
const (
	overBudgetRatio     = 1.01
	completedFloor      = 0.99
	nearCompletionFloor = 0.95
)

// Labels returns the full label vocabulary, sorted. Useful for validating
// that every emitted status belongs to the fixed set.
func Labels() []string {
	out := []string{
		LabelSpendNoBudgetRunning, LabelSpendNoBudgetStopped, LabelNoBudget,
		LabelNotYetStarted, LabelNotSet, LabelDelayed, LabelEndedWithoutSpend,
		LabelOverBudgetRunning, LabelOverBudgetStopped, LabelCompleted,
		LabelNearCompletion, LabelLowSpend, LabelHighSpend, LabelOff,
		LabelInProgress, LabelNoSpend, LabelUnrecognized,
	}
	sort.Strings(out)
	return out
}

var (
	setsMu sync.RWMutex
	sets   = map[string]RuleSet{}
)

// Register adds (or replaces) a named rule set. Called from init for the
// built-in chains; tests may register bespoke chains.
func Register(s RuleSet) {
	setsMu.Lock()
	defer setsMu.Unlock()
	sets[s.Name] = s
}

// Lookup resolves a rule set by name. The empty name selects the default
// "pacing" chain.
func Lookup(name string) (RuleSet, error) {
	if name == "" {
		name = "pacing"
	}
	setsMu.RLock()
	defer setsMu.RUnlock()
	s, ok := sets[name]
	if !ok {
		return RuleSet{}, fmt.Errorf("classify: unknown rule set %q", name)
	}
	return s, nil
}

// Names lists the registered rule set names, sorted.
func Names() []string {
	setsMu.RLock()
	defer setsMu.RUnlock()
	out := make([]string, 0, len(sets))
	for n := range sets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(pacingRuleSet())
	Register(thresholdRuleSet())
}

// pacingRuleSet is the full daily reconciliation chain: grace-window
// handling for budgets with no spend yet, and pacing deviation detection
// comparing the spend/budget ratio against the elapsed share of the budget
// window. Order is load-bearing; each predicate assumes everything above it
// already failed.
func pacingRuleSet() RuleSet {
	return RuleSet{
		Name: "pacing",
		Rules: []Rule{
			{
				Name: "spend_without_budget_running", Label: LabelSpendNoBudgetRunning, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return spendAmount(r) > 0 && !hasBudget(r) && active(r)
				},
			},
			{
				Name: "spend_without_budget_stopped", Label: LabelSpendNoBudgetStopped, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return spendAmount(r) > 0 && !hasBudget(r)
				},
			},
			{
				Name: "no_budget", Label: LabelNoBudget, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return !hasBudget(r)
				},
			},
			{
				Name: "not_yet_started", Label: LabelNotYetStarted, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return r.StartDate != nil && dateOnly(ev.AsOf).Before(dateOnly(*r.StartDate))
				},
			},
			{
				Name: "not_set", Label: LabelNotSet, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					if r.StartDate == nil || spendAmount(r) != 0 || statusRecorded(r) {
						return false
					}
					return daysBetween(*r.StartDate, ev.AsOf) <= ev.Params.GraceDays
				},
			},
			{
				Name: "delayed", Label: LabelDelayed, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					if r.StartDate == nil || r.EndDate == nil || spendAmount(r) != 0 || statusRecorded(r) {
						return false
					}
					asOf := dateOnly(ev.AsOf)
					if asOf.After(dateOnly(*r.EndDate)) {
						return false
					}
					return daysBetween(*r.StartDate, ev.AsOf) > ev.Params.GraceDays
				},
			},
			{
				Name: "ended_without_spend", Label: LabelEndedWithoutSpend, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return r.EndDate != nil && dateOnly(ev.AsOf).After(dateOnly(*r.EndDate)) && spendAmount(r) == 0
				},
			},
			{
				Name: "over_budget_running", Label: LabelOverBudgetRunning, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && ratio >= overBudgetRatio && active(r)
				},
			},
			{
				Name: "over_budget_stopped", Label: LabelOverBudgetStopped, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && ratio >= overBudgetRatio
				},
			},
			{
				Name: "completed", Label: LabelCompleted, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && ratio > completedFloor && ratio <= overBudgetRatio
				},
			},
			{
				Name: "near_completion", Label: LabelNearCompletion, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && active(r) && ratio >= nearCompletionFloor && ratio <= completedFloor
				},
			},
			{
				Name: "low_spend", Label: LabelLowSpend, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, expected, ok := pacing(r, ev)
					return ok && ratio < expected-ev.Params.PacingMargin
				},
			},
			{
				Name: "high_spend", Label: LabelHighSpend, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, expected, ok := pacing(r, ev)
					return ok && ratio > expected+ev.Params.PacingMargin
				},
			},
			{
				Name: "off", Label: LabelOff, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					if active(r) || spendAmount(r) <= 0 {
						return false
					}
					ratio, ok := Ratio(r)
					return ok && ratio < completedFloor
				},
			},
			{
				Name: "in_progress", Label: LabelInProgress, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return spendAmount(r) > 0 && active(r)
				},
			},
			{
				Name: "unrecognized", Label: LabelUnrecognized, Severity: SeverityAlert,
			},
		},
	}
}

// pacing evaluates the shared precondition of the low/high spend rules:
// budget exists, campaign is active, ratio is below the near-completion
// band, and the budget window has positive length (the zero-length guard —
// rows with start == end skip the pacing rules entirely). It returns the
// spend/budget ratio and the expected elapsed-time ratio.
func pacing(r *schema.ReconRow, ev Eval) (ratio, expected float64, ok bool) {
	if !active(r) || r.StartDate == nil || r.EndDate == nil {
		return 0, 0, false
	}
	ratio, rok := Ratio(r)
	if !rok || ratio >= nearCompletionFloor {
		return 0, 0, false
	}
	total := daysBetween(*r.StartDate, *r.EndDate)
	if total <= 0 {
		return 0, 0, false
	}
	elapsed := daysBetween(*r.StartDate, ev.AsOf)
	return ratio, float64(elapsed) / float64(total), true
}

// thresholdRuleSet is the simplified chain used for the monthly roll-up
// output: no grace window, no pacing deviation. Budgeted rows with zero
// spend collapse to a single "No Spend" label and everything else is a
// plain over/under/active threshold decision.
func thresholdRuleSet() RuleSet {
	return RuleSet{
		Name: "threshold",
		Rules: []Rule{
			{
				Name: "spend_without_budget_running", Label: LabelSpendNoBudgetRunning, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return spendAmount(r) > 0 && !hasBudget(r) && active(r)
				},
			},
			{
				Name: "spend_without_budget_stopped", Label: LabelSpendNoBudgetStopped, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return spendAmount(r) > 0 && !hasBudget(r)
				},
			},
			{
				Name: "no_budget", Label: LabelNoBudget, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return !hasBudget(r)
				},
			},
			{
				Name: "not_yet_started", Label: LabelNotYetStarted, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return r.StartDate != nil && dateOnly(ev.AsOf).Before(dateOnly(*r.StartDate))
				},
			},
			{
				Name: "no_spend", Label: LabelNoSpend, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return spendAmount(r) == 0
				},
			},
			{
				Name: "over_budget_running", Label: LabelOverBudgetRunning, Severity: SeverityAlert,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && ratio >= overBudgetRatio && active(r)
				},
			},
			{
				Name: "over_budget_stopped", Label: LabelOverBudgetStopped, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && ratio >= overBudgetRatio
				},
			},
			{
				Name: "completed", Label: LabelCompleted, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && ratio > completedFloor && ratio <= overBudgetRatio
				},
			},
			{
				Name: "near_completion", Label: LabelNearCompletion, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					ratio, ok := Ratio(r)
					return ok && active(r) && ratio >= nearCompletionFloor && ratio <= completedFloor
				},
			},
			{
				Name: "off", Label: LabelOff, Severity: SeverityInfo,
				When: func(r *schema.ReconRow, ev Eval) bool {
					if active(r) {
						return false
					}
					ratio, ok := Ratio(r)
					return ok && ratio < completedFloor
				},
			},
			{
				Name: "in_progress", Label: LabelInProgress, Severity: SeverityOK,
				When: func(r *schema.ReconRow, ev Eval) bool {
					return active(r)
				},
			},
			{
				Name: "unrecognized", Label: LabelUnrecognized, Severity: SeverityAlert,
			},
		},
	}
}
