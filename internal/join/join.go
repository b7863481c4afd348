// Package join implements the null-safe full outer join of the budget
// relation and the aggregated spend relation on the composite dimensional
// key.
//
// Key comparison is null-safe per field (nil matches nil, nil never matches
// a value), giving standard outer-join semantics on each discrete field
// without a warehouse-side query. Uniqueness is NOT assumed on
// either side: duplicate keys fan the join out, which is documented,
// intended behavior surfaced by tests rather than a defect to guard against.
package join

import (
	"sort"

	"recon/internal/schema"
)

// FullOuter produces one reconciliation row for every key present on either
// side: budget-only rows carry nil spend fields, spend-only rows carry nil
// budget fields, and matched keys yield one row per (budget, spend) pair.
//
// Coalesced key fields prefer the budget side and fall back to spend, which
// matters for spend-only keys where the budget side is entirely NULL.
//
// The result is sorted by canonical key (then personnel) so that identical
// inputs yield an identical relation, run over run.
func FullOuter(budgets []schema.BudgetRecord, spend []schema.SpendMonthly) []schema.ReconRow {
	spendByKey := make(map[string][]int, len(spend))
	for i := range spend {
		ck := spend[i].Key.Canonical()
		spendByKey[ck] = append(spendByKey[ck], i)
	}

	out := make([]schema.ReconRow, 0, len(budgets)+len(spend))
	matched := make(map[string]bool, len(spend))

	for i := range budgets {
		b := &budgets[i]
		ck := b.Key.Canonical()
		idxs, ok := spendByKey[ck]
		if !ok {
			out = append(out, budgetOnlyRow(b))
			continue
		}
		matched[ck] = true
		for _, si := range idxs {
			out = append(out, matchedRow(b, &spend[si]))
		}
	}

	for i := range spend {
		s := &spend[i]
		if matched[s.Key.Canonical()] {
			continue
		}
		out = append(out, spendOnlyRow(s))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		ca, cb := a.Key.Canonical(), b.Key.Canonical()
		if ca != cb {
			return ca < cb
		}
		return derefOr(a.Personnel) < derefOr(b.Personnel)
	})
	return out
}

func budgetOnlyRow(b *schema.BudgetRecord) schema.ReconRow {
	r := schema.ReconRow{Key: b.Key}
	copyBudget(&r, b)
	return r
}

func spendOnlyRow(s *schema.SpendMonthly) schema.ReconRow {
	r := schema.ReconRow{Key: s.Key}
	copySpend(&r, s)
	return r
}

func matchedRow(b *schema.BudgetRecord, s *schema.SpendMonthly) schema.ReconRow {
	r := schema.ReconRow{Key: b.Key.Coalesce(s.Key)}
	copyBudget(&r, b)
	copySpend(&r, s)
	return r
}

func copyBudget(r *schema.ReconRow, b *schema.BudgetRecord) {
	r.Year = b.Year
	r.StartDate = b.StartDate
	r.EndDate = b.EndDate
	r.InitialBudget = b.InitialBudget
	r.AdjustedBudget = b.AdjustedBudget
	r.AdditionalBudget = b.AdditionalBudget
	r.ActualBudget = b.ActualBudget
	r.GroupedMarketingBudget = b.GroupedMarketingBudget
	r.GroupedSupplierBudget = b.GroupedSupplierBudget
	r.GroupedRetailBudget = b.GroupedRetailBudget
	r.GroupedCustomerBudget = b.GroupedCustomerBudget
	r.GroupedRecruitmentBudget = b.GroupedRecruitmentBudget
}

func copySpend(r *schema.ReconRow, s *schema.SpendMonthly) {
	spend := s.Spend
	status := s.StatusMarker()
	r.Personnel = s.Personnel
	r.Spend = &spend
	r.SpendStatus = &status
}

func derefOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
