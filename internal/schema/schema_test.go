package schema

import (
	"testing"
	"time"
)

func strPtr(s string) *string   { return &s }
func fltPtr(f float64) *float64 { return &f }

func TestKey_CanonicalNullSafety(t *testing.T) {
	nilRegion := Key{Month: "2025-05"}
	emptyRegion := Key{Region: strPtr(""), Month: "2025-05"}
	if nilRegion.Canonical() == emptyRegion.Canonical() {
		t.Fatal("nil and empty-string field encode identically")
	}

	a := Key{Region: strPtr("emea"), Month: "2025-05"}
	b := Key{Region: strPtr("emea"), Month: "2025-05"}
	if a.Canonical() != b.Canonical() {
		t.Fatal("equal keys encode differently")
	}

	// A value containing the separator byte must not collide with the same
	// value split across adjacent fields.
	joined := Key{BudgetGroup1: strPtr("a\x1fb"), Month: "m"}
	split := Key{BudgetGroup1: strPtr("a"), BudgetGroup2: strPtr("b"), Month: "m"}
	if joined.Canonical() == split.Canonical() {
		t.Fatal("separator byte inside a value collides across fields")
	}
}

func TestKey_Coalesce(t *testing.T) {
	b := Key{Region: strPtr("emea"), Month: "2025-05"}
	s := Key{Region: strPtr("ignored"), Platform: strPtr("search"), Month: "2025-06"}

	got := b.Coalesce(s)
	if *got.Region != "emea" {
		t.Fatalf("receiver field lost: %v", *got.Region)
	}
	if got.Platform == nil || *got.Platform != "search" {
		t.Fatalf("fallback field missing: %v", got.Platform)
	}
	if got.Month != "2025-05" {
		t.Fatalf("month = %q", got.Month)
	}

	empty := Key{}
	got = empty.Coalesce(s)
	if got.Month != "2025-06" {
		t.Fatalf("empty receiver month should fall back, got %q", got.Month)
	}
}

func TestColumns_Shapes(t *testing.T) {
	if got := len(BudgetColumns()); got != 22 {
		t.Fatalf("budget columns = %d, want 22", got)
	}
	if got := len(SpendColumns()); got != 13 {
		t.Fatalf("spend columns = %d, want 13", got)
	}
	if got := len(ReconColumns()); got != 26 {
		t.Fatalf("recon columns = %d, want 26", got)
	}

	cols := ReconColumns()
	if cols[len(cols)-1].Name != "recon_status" {
		t.Fatalf("last output column = %q", cols[len(cols)-1].Name)
	}
	for _, c := range cols {
		if c.Name == "" || c.Kind == "" {
			t.Fatalf("column missing name or kind: %+v", c)
		}
	}
}

func TestReconRow_ValuesAlignment(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := ReconRow{
		Key:          Key{Region: strPtr("emea"), Month: "2025-05"},
		StartDate:    &start,
		ActualBudget: fltPtr(1000),
		Spend:        fltPtr(250),
		ReconStatus:  "In Progress",
	}

	vals := r.Values()
	cols := ReconColumns()
	if len(vals) != len(cols) {
		t.Fatalf("Values length %d does not match ReconColumns length %d", len(vals), len(cols))
	}

	byName := map[string]any{}
	for i, c := range cols {
		byName[c.Name] = vals[i]
	}
	if byName["region"] != "emea" {
		t.Fatalf("region = %v", byName["region"])
	}
	if byName["month"] != "2025-05" {
		t.Fatalf("month = %v", byName["month"])
	}
	if byName["actual_budget"] != 1000.0 {
		t.Fatalf("actual_budget = %v", byName["actual_budget"])
	}
	if byName["recon_status"] != "In Progress" {
		t.Fatalf("recon_status = %v", byName["recon_status"])
	}

	// Nil pointers travel as untyped nils so drivers emit SQL NULL instead of
	// a typed zero.
	if byName["end_date"] != nil {
		t.Fatalf("end_date = %v, want nil", byName["end_date"])
	}
	if byName["personnel"] != nil {
		t.Fatalf("personnel = %v, want nil", byName["personnel"])
	}
}

func TestSpendMonthly_StatusMarker(t *testing.T) {
	s := SpendMonthly{Active: true}
	if got := s.StatusMarker(); got != "active" {
		t.Fatalf("got %q", got)
	}
	s.Active = false
	if got := s.StatusMarker(); got != "paused" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptyRelations(t *testing.T) {
	if b := EmptyBudget(); b == nil || len(b) != 0 {
		t.Fatalf("EmptyBudget = %#v", b)
	}
	if s := EmptySpend(); s == nil || len(s) != 0 {
		t.Fatalf("EmptySpend = %#v", s)
	}
}
