package classify

import (
	"testing"
	"time"

	"recon/internal/schema"
)

var asOf = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func ev() Eval {
	return Eval{AsOf: asOf, Params: DefaultParams()}
}

func strPtr(s string) *string   { return &s }
func fltPtr(f float64) *float64 { return &f }
func datePtr(d int) *time.Time  { t := asOf.AddDate(0, 0, d); return &t }

// row builds a joined row with a budget of 1000 spanning a 100-day window
// centered on the evaluation date. Tests override fields as needed.
func row(mut func(*schema.ReconRow)) *schema.ReconRow {
	r := &schema.ReconRow{
		ActualBudget: fltPtr(1000),
		StartDate:    datePtr(-50),
		EndDate:      datePtr(50),
	}
	if mut != nil {
		mut(r)
	}
	return r
}

func classifyPacing(t *testing.T, r *schema.ReconRow) Rule {
	t.Helper()
	s, err := Lookup("pacing")
	if err != nil {
		t.Fatalf("Lookup(pacing): %v", err)
	}
	return s.Classify(r, ev())
}

func TestPacing_SpendWithoutBudget(t *testing.T) {
	// Spend-only row from the outer join: no budget side at all, active.
	r := &schema.ReconRow{
		Spend:       fltPtr(100),
		SpendStatus: strPtr("active"),
	}
	if got := classifyPacing(t, r); got.Label != LabelSpendNoBudgetRunning {
		t.Fatalf("got %q, want %q", got.Label, LabelSpendNoBudgetRunning)
	}

	// Same shape but stopped.
	r.SpendStatus = strPtr("paused")
	if got := classifyPacing(t, r); got.Label != LabelSpendNoBudgetStopped {
		t.Fatalf("got %q, want %q", got.Label, LabelSpendNoBudgetStopped)
	}

	// A zero actual budget counts as no budget, not a zero denominator.
	r = row(func(r *schema.ReconRow) {
		r.ActualBudget = fltPtr(0)
		r.Spend = fltPtr(100)
		r.SpendStatus = strPtr("active")
	})
	if got := classifyPacing(t, r); got.Label != LabelSpendNoBudgetRunning {
		t.Fatalf("zero budget: got %q, want %q", got.Label, LabelSpendNoBudgetRunning)
	}
}

func TestPacing_NoBudget(t *testing.T) {
	r := &schema.ReconRow{} // nothing on either side
	if got := classifyPacing(t, r); got.Label != LabelNoBudget {
		t.Fatalf("got %q, want %q", got.Label, LabelNoBudget)
	}
}

func TestPacing_NotYetStarted(t *testing.T) {
	r := row(func(r *schema.ReconRow) {
		r.StartDate = datePtr(5)
		r.EndDate = datePtr(60)
	})
	if got := classifyPacing(t, r); got.Label != LabelNotYetStarted {
		t.Fatalf("got %q, want %q", got.Label, LabelNotYetStarted)
	}

	// Starting exactly today is started.
	r.StartDate = datePtr(0)
	if got := classifyPacing(t, r); got.Label == LabelNotYetStarted {
		t.Fatalf("start==as-of should not be %q", LabelNotYetStarted)
	}
}

func TestPacing_GraceWindow(t *testing.T) {
	// Within grace: started 2 days ago, no spend row joined at all.
	r := row(func(r *schema.ReconRow) {
		r.StartDate = datePtr(-2)
	})
	if got := classifyPacing(t, r); got.Label != LabelNotSet {
		t.Fatalf("within grace: got %q, want %q", got.Label, LabelNotSet)
	}

	// Exactly at the grace boundary still counts as Not Set.
	r.StartDate = datePtr(-3)
	if got := classifyPacing(t, r); got.Label != LabelNotSet {
		t.Fatalf("at grace boundary: got %q, want %q", got.Label, LabelNotSet)
	}

	// Past grace, window still open: Delayed.
	r.StartDate = datePtr(-4)
	if got := classifyPacing(t, r); got.Label != LabelDelayed {
		t.Fatalf("past grace: got %q, want %q", got.Label, LabelDelayed)
	}

	// A recorded status marker disables the grace rules; with zero spend and
	// an open window this row walks down to the pacing rules instead.
	r = row(func(r *schema.ReconRow) {
		r.StartDate = datePtr(-90)
		r.EndDate = datePtr(10)
		r.Spend = fltPtr(0)
		r.SpendStatus = strPtr("active")
	})
	if got := classifyPacing(t, r); got.Label != LabelLowSpend {
		t.Fatalf("zero spend with status: got %q, want %q", got.Label, LabelLowSpend)
	}
}

func TestPacing_EndedWithoutSpend(t *testing.T) {
	r := row(func(r *schema.ReconRow) {
		r.StartDate = datePtr(-30)
		r.EndDate = datePtr(-5)
	})
	if got := classifyPacing(t, r); got.Label != LabelEndedWithoutSpend {
		t.Fatalf("got %q, want %q", got.Label, LabelEndedWithoutSpend)
	}

	// Recorded status does not rescue a window that ended with no spend.
	r.SpendStatus = strPtr("paused")
	r.Spend = fltPtr(0)
	if got := classifyPacing(t, r); got.Label != LabelEndedWithoutSpend {
		t.Fatalf("with status: got %q, want %q", got.Label, LabelEndedWithoutSpend)
	}
}

func TestPacing_OverBudget(t *testing.T) {
	// 1050 spent against 1000, still running.
	r := row(func(r *schema.ReconRow) {
		r.Spend = fltPtr(1050)
		r.SpendStatus = strPtr("active")
	})
	if got := classifyPacing(t, r); got.Label != LabelOverBudgetRunning {
		t.Fatalf("got %q, want %q", got.Label, LabelOverBudgetRunning)
	}

	r.SpendStatus = strPtr("paused")
	if got := classifyPacing(t, r); got.Label != LabelOverBudgetStopped {
		t.Fatalf("stopped: got %q, want %q", got.Label, LabelOverBudgetStopped)
	}

	// Exactly at the 1.01 boundary belongs to over budget, not completed.
	r.Spend = fltPtr(1010)
	r.SpendStatus = strPtr("active")
	if got := classifyPacing(t, r); got.Label != LabelOverBudgetRunning {
		t.Fatalf("ratio 1.01: got %q, want %q", got.Label, LabelOverBudgetRunning)
	}
}

func TestPacing_CompletionBand(t *testing.T) {
	// Ratio 1.0 is completed regardless of the status marker.
	r := row(func(r *schema.ReconRow) {
		r.Spend = fltPtr(1000)
		r.SpendStatus = strPtr("paused")
	})
	if got := classifyPacing(t, r); got.Label != LabelCompleted {
		t.Fatalf("ratio 1.0: got %q, want %q", got.Label, LabelCompleted)
	}

	// Ratio exactly 0.99 sits in the near-completion band, active only.
	r.Spend = fltPtr(990)
	r.SpendStatus = strPtr("active")
	if got := classifyPacing(t, r); got.Label != LabelNearCompletion {
		t.Fatalf("ratio 0.99 active: got %q, want %q", got.Label, LabelNearCompletion)
	}

	r.Spend = fltPtr(950)
	if got := classifyPacing(t, r); got.Label != LabelNearCompletion {
		t.Fatalf("ratio 0.95 active: got %q, want %q", got.Label, LabelNearCompletion)
	}

	// Same ratio but stopped falls through to Off.
	r.SpendStatus = strPtr("paused")
	if got := classifyPacing(t, r); got.Label != LabelOff {
		t.Fatalf("ratio 0.95 paused: got %q, want %q", got.Label, LabelOff)
	}
}

func TestPacing_Deviation(t *testing.T) {
	// 90 of 100 days elapsed, 20% spent: 0.2 < 0.9 - 0.3.
	r := row(func(r *schema.ReconRow) {
		r.StartDate = datePtr(-90)
		r.EndDate = datePtr(10)
		r.Spend = fltPtr(200)
		r.SpendStatus = strPtr("active")
	})
	if got := classifyPacing(t, r); got.Label != LabelLowSpend {
		t.Fatalf("got %q, want %q", got.Label, LabelLowSpend)
	}

	// 10 of 100 days elapsed, 50% spent: 0.5 > 0.1 + 0.3.
	r.StartDate = datePtr(-10)
	r.EndDate = datePtr(90)
	r.Spend = fltPtr(500)
	if got := classifyPacing(t, r); got.Label != LabelHighSpend {
		t.Fatalf("got %q, want %q", got.Label, LabelHighSpend)
	}

	// Halfway through, half spent: inside the band, still running.
	r.StartDate = datePtr(-50)
	r.EndDate = datePtr(50)
	if got := classifyPacing(t, r); got.Label != LabelInProgress {
		t.Fatalf("on pace: got %q, want %q", got.Label, LabelInProgress)
	}

	// A wider margin turns the high-spend row back into In Progress.
	r.StartDate = datePtr(-10)
	r.EndDate = datePtr(90)
	e := ev()
	e.Params.PacingMargin = 0.45
	s, _ := Lookup("pacing")
	if got := s.Classify(r, e); got.Label != LabelInProgress {
		t.Fatalf("wide margin: got %q, want %q", got.Label, LabelInProgress)
	}
}

func TestPacing_ZeroLengthWindow(t *testing.T) {
	// start == end: the pacing rules must not divide by zero days and the
	// row lands on In Progress.
	r := row(func(r *schema.ReconRow) {
		r.StartDate = datePtr(0)
		r.EndDate = datePtr(0)
		r.Spend = fltPtr(500)
		r.SpendStatus = strPtr("active")
	})
	if got := classifyPacing(t, r); got.Label != LabelInProgress {
		t.Fatalf("got %q, want %q", got.Label, LabelInProgress)
	}
}

func TestPacing_Off(t *testing.T) {
	r := row(func(r *schema.ReconRow) {
		r.Spend = fltPtr(500)
		r.SpendStatus = strPtr("paused")
	})
	if got := classifyPacing(t, r); got.Label != LabelOff {
		t.Fatalf("got %q, want %q", got.Label, LabelOff)
	}
}

func TestPacing_Unrecognized(t *testing.T) {
	// A budgeted row with no dates and a recorded zero-spend status matches
	// nothing above the catch-all.
	r := &schema.ReconRow{
		ActualBudget: fltPtr(1000),
		SpendStatus:  strPtr("active"),
		Spend:        fltPtr(0),
	}
	if got := classifyPacing(t, r); got.Label != LabelUnrecognized {
		t.Fatalf("got %q, want %q", got.Label, LabelUnrecognized)
	}
}

func TestPacing_StatusMarkerIsCaseInsensitive(t *testing.T) {
	r := row(func(r *schema.ReconRow) {
		r.Spend = fltPtr(1050)
		r.SpendStatus = strPtr("  Active ")
	})
	if got := classifyPacing(t, r); got.Label != LabelOverBudgetRunning {
		t.Fatalf("got %q, want %q", got.Label, LabelOverBudgetRunning)
	}
}

func TestThreshold_Chain(t *testing.T) {
	s, err := Lookup("threshold")
	if err != nil {
		t.Fatalf("Lookup(threshold): %v", err)
	}

	cases := []struct {
		name string
		r    *schema.ReconRow
		want string
	}{
		{
			name: "budgeted zero spend collapses to no spend",
			r:    row(nil),
			want: LabelNoSpend,
		},
		{
			name: "no grace window in this chain",
			r: row(func(r *schema.ReconRow) {
				r.StartDate = datePtr(-2)
			}),
			want: LabelNoSpend,
		},
		{
			name: "future start still reported",
			r: row(func(r *schema.ReconRow) {
				r.StartDate = datePtr(5)
			}),
			want: LabelNotYetStarted,
		},
		{
			name: "active over budget",
			r: row(func(r *schema.ReconRow) {
				r.Spend = fltPtr(1200)
				r.SpendStatus = strPtr("active")
			}),
			want: LabelOverBudgetRunning,
		},
		{
			name: "active under completion is in progress",
			r: row(func(r *schema.ReconRow) {
				r.Spend = fltPtr(400)
				r.SpendStatus = strPtr("active")
			}),
			want: LabelInProgress,
		},
		{
			name: "stopped under completion is off",
			r: row(func(r *schema.ReconRow) {
				r.Spend = fltPtr(400)
				r.SpendStatus = strPtr("paused")
			}),
			want: LabelOff,
		},
		{
			name: "spend without budget",
			r: &schema.ReconRow{
				Spend:       fltPtr(50),
				SpendStatus: strPtr("active"),
			},
			want: LabelSpendNoBudgetRunning,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Classify(tc.r, ev()); got.Label != tc.want {
				t.Fatalf("got %q, want %q", got.Label, tc.want)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// An active over-budget row satisfies both over-budget predicates; the
	// running variant is earlier in the chain and must win.
	r := row(func(r *schema.ReconRow) {
		r.Spend = fltPtr(2000)
		r.SpendStatus = strPtr("active")
	})
	got := classifyPacing(t, r)
	if got.Name != "over_budget_running" {
		t.Fatalf("got rule %q, want over_budget_running", got.Name)
	}
}

func TestClassify_ChainWithoutCatchAll(t *testing.T) {
	s := RuleSet{Name: "custom", Rules: []Rule{
		{Name: "never", Label: "Never", When: func(*schema.ReconRow, Eval) bool { return false }},
	}}
	got := s.Classify(&schema.ReconRow{}, ev())
	if got.Label != LabelUnrecognized {
		t.Fatalf("got %q, want %q", got.Label, LabelUnrecognized)
	}
}

func TestRatio_SafeDivision(t *testing.T) {
	if _, ok := Ratio(&schema.ReconRow{Spend: fltPtr(10)}); ok {
		t.Fatal("nil budget should not produce a ratio")
	}
	if _, ok := Ratio(&schema.ReconRow{Spend: fltPtr(10), ActualBudget: fltPtr(0)}); ok {
		t.Fatal("zero budget should not produce a ratio")
	}
	if _, ok := Ratio(&schema.ReconRow{ActualBudget: fltPtr(100)}); ok {
		t.Fatal("nil spend should not produce a ratio")
	}
	got, ok := Ratio(&schema.ReconRow{Spend: fltPtr(25), ActualBudget: fltPtr(100)})
	if !ok || got != 0.25 {
		t.Fatalf("Ratio = %v, %v; want 0.25, true", got, ok)
	}
}

func TestLookupAndNames(t *testing.T) {
	// Empty name selects the default chain.
	s, err := Lookup("")
	if err != nil {
		t.Fatalf("Lookup(\"\"): %v", err)
	}
	if s.Name != "pacing" {
		t.Fatalf("default rule set = %q; want pacing", s.Name)
	}

	if _, err := Lookup("nope"); err == nil {
		t.Fatal("Lookup of unknown set succeeded")
	}

	names := Names()
	want := map[string]bool{"pacing": false, "threshold": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Fatalf("Names() = %v; missing %q", names, n)
		}
	}
}

// TestChains_EmitOnlyKnownLabels walks a spread of rows through both chains
// and checks every label belongs to the fixed vocabulary.
func TestChains_EmitOnlyKnownLabels(t *testing.T) {
	known := map[string]bool{}
	for _, l := range Labels() {
		known[l] = true
	}

	rows := []*schema.ReconRow{
		{},
		{Spend: fltPtr(10)},
		{Spend: fltPtr(10), SpendStatus: strPtr("active")},
		row(nil),
		row(func(r *schema.ReconRow) { r.Spend = fltPtr(990); r.SpendStatus = strPtr("active") }),
		row(func(r *schema.ReconRow) { r.Spend = fltPtr(5000) }),
		row(func(r *schema.ReconRow) { r.StartDate = nil; r.EndDate = nil }),
	}
	for _, name := range []string{"pacing", "threshold"} {
		s, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		for i, r := range rows {
			got := s.Classify(r, ev())
			if !known[got.Label] {
				t.Fatalf("%s row %d: label %q not in vocabulary", name, i, got.Label)
			}
		}
	}
}
