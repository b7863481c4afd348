package join

import (
	"testing"

	"recon/internal/schema"
)

func strPtr(s string) *string   { return &s }
func fltPtr(f float64) *float64 { return &f }

func key(region string, month string) schema.Key {
	return schema.Key{Region: strPtr(region), Month: month}
}

func TestFullOuter_MatchedAndUnmatched(t *testing.T) {
	budgets := []schema.BudgetRecord{
		{Key: key("emea", "2025-05"), ActualBudget: fltPtr(1000)},
		{Key: key("apac", "2025-05"), ActualBudget: fltPtr(500)},
	}
	spend := []schema.SpendMonthly{
		{Key: key("emea", "2025-05"), Spend: 750, Active: true},
		{Key: key("latam", "2025-05"), Spend: 50},
	}

	rows := FullOuter(budgets, spend)
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}

	byRegion := map[string]*schema.ReconRow{}
	for i := range rows {
		byRegion[*rows[i].Region] = &rows[i]
	}

	m := byRegion["emea"]
	if m.ActualBudget == nil || *m.ActualBudget != 1000 {
		t.Fatalf("matched row lost budget: %+v", m)
	}
	if m.Spend == nil || *m.Spend != 750 {
		t.Fatalf("matched row lost spend: %+v", m)
	}
	if m.SpendStatus == nil || *m.SpendStatus != "active" {
		t.Fatalf("matched row status = %v", m.SpendStatus)
	}

	b := byRegion["apac"]
	if b.Spend != nil || b.SpendStatus != nil {
		t.Fatalf("budget-only row carries spend fields: %+v", b)
	}
	if b.ActualBudget == nil || *b.ActualBudget != 500 {
		t.Fatalf("budget-only row lost budget: %+v", b)
	}

	s := byRegion["latam"]
	if s.ActualBudget != nil || s.StartDate != nil {
		t.Fatalf("spend-only row carries budget fields: %+v", s)
	}
	if s.Spend == nil || *s.Spend != 50 {
		t.Fatalf("spend-only row lost spend: %+v", s)
	}
	if *s.SpendStatus != "paused" {
		t.Fatalf("inactive aggregate rendered as %q", *s.SpendStatus)
	}
}

func TestFullOuter_NullSafeKeys(t *testing.T) {
	// A nil region matches a nil region but never an empty string.
	nilKey := schema.Key{Month: "2025-05"}
	emptyKey := schema.Key{Region: strPtr(""), Month: "2025-05"}

	budgets := []schema.BudgetRecord{
		{Key: nilKey, ActualBudget: fltPtr(100)},
		{Key: emptyKey, ActualBudget: fltPtr(200)},
	}
	spend := []schema.SpendMonthly{
		{Key: nilKey, Spend: 10},
	}

	rows := FullOuter(budgets, spend)
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	for i := range rows {
		r := &rows[i]
		switch {
		case r.Region == nil:
			if r.Spend == nil || *r.Spend != 10 {
				t.Fatalf("nil-region budget should have matched nil-region spend: %+v", r)
			}
		case *r.Region == "":
			if r.Spend != nil {
				t.Fatalf("empty-string region must not match nil region: %+v", r)
			}
		}
	}
}

func TestFullOuter_DuplicateKeysFanOut(t *testing.T) {
	// Two spend aggregates under the same key (personnel grain) against one
	// budget row produce two reconciliation rows.
	k := key("emea", "2025-05")
	budgets := []schema.BudgetRecord{{Key: k, ActualBudget: fltPtr(1000)}}
	spend := []schema.SpendMonthly{
		{Key: k, Personnel: strPtr("alice"), Spend: 300},
		{Key: k, Personnel: strPtr("bob"), Spend: 400},
	}

	rows := FullOuter(budgets, spend)
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	for i := range rows {
		if rows[i].ActualBudget == nil || *rows[i].ActualBudget != 1000 {
			t.Fatalf("fan-out row %d lost budget: %+v", i, rows[i])
		}
	}
	if *rows[0].Personnel != "alice" || *rows[1].Personnel != "bob" {
		t.Fatalf("fan-out order = %v, %v", *rows[0].Personnel, *rows[1].Personnel)
	}
}

func TestFullOuter_CoalescedKeyPrefersBudget(t *testing.T) {
	// The platform attribute is nil on the budget side and set on the spend
	// side of the same key position; since the full key participates in
	// matching, these are distinct keys, but a matched key with extra nil
	// fields still coalesces from the budget side first.
	b := schema.Key{Region: strPtr("emea"), Platform: strPtr("search"), Month: "2025-05"}
	budgets := []schema.BudgetRecord{{Key: b, ActualBudget: fltPtr(100)}}
	spend := []schema.SpendMonthly{{Key: b, Spend: 10}}

	rows := FullOuter(budgets, spend)
	if len(rows) != 1 {
		t.Fatalf("len = %d, want 1", len(rows))
	}
	if *rows[0].Platform != "search" || rows[0].Month != "2025-05" {
		t.Fatalf("coalesced key = %+v", rows[0].Key)
	}
}

func TestFullOuter_DeterministicOrder(t *testing.T) {
	budgets := []schema.BudgetRecord{
		{Key: key("zz", "2025-05"), ActualBudget: fltPtr(1)},
		{Key: key("aa", "2025-05"), ActualBudget: fltPtr(2)},
	}
	spend := []schema.SpendMonthly{
		{Key: key("mm", "2025-05"), Spend: 3},
	}

	a := FullOuter(budgets, spend)
	b := FullOuter(budgets, spend)
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("len = %d, %d; want 3", len(a), len(b))
	}
	for i := range a {
		if a[i].Key.Canonical() != b[i].Key.Canonical() {
			t.Fatalf("row %d order differs between runs", i)
		}
	}
	if *a[0].Region != "aa" || *a[1].Region != "mm" || *a[2].Region != "zz" {
		t.Fatalf("order = %s, %s, %s", *a[0].Region, *a[1].Region, *a[2].Region)
	}
}

func TestFullOuter_EmptySides(t *testing.T) {
	if got := FullOuter(nil, nil); len(got) != 0 {
		t.Fatalf("both empty: len = %d", len(got))
	}

	spend := []schema.SpendMonthly{{Key: key("emea", "2025-05"), Spend: 5}}
	rows := FullOuter(nil, spend)
	if len(rows) != 1 || rows[0].ActualBudget != nil {
		t.Fatalf("spend-only relation: %+v", rows)
	}

	budgets := []schema.BudgetRecord{{Key: key("emea", "2025-05"), ActualBudget: fltPtr(9)}}
	rows = FullOuter(budgets, nil)
	if len(rows) != 1 || rows[0].Spend != nil {
		t.Fatalf("budget-only relation: %+v", rows)
	}
}
