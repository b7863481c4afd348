// Package aggregate collapses raw spend facts to the monthly reconciliation
// grain: one row per dimensional key and month, summing spend and deriving
// the active flag.
//
// Keys that never appear in the raw facts are simply absent from the output;
// absence and zero are different things and the distinction is preserved all
// the way to the classifier.
package aggregate

import (
	"sort"
	"strings"

	"recon/internal/schema"
)

// Options controls the aggregation grain and pre-filtering.
type Options struct {
	// Personnel adds the personnel attribute to the grouping key (the richer
	// variant used by the monthly roll-up output). When disabled, the
	// personnel of the first record in each group is carried through as an
	// informational field.
	Personnel bool

	// KeepNonPositive retains records with NULL or non-positive spend. The
	// default mirrors the source behavior of filtering them before
	// aggregation; retained NULLs sum as zero but still contribute to the
	// active flag.
	KeepNonPositive bool
}

type group struct {
	row   schema.SpendMonthly
	first int // input index of the first member, for stable ordering
}

// Monthly groups the raw facts by full dimensional key plus month (and
// personnel when enabled), producing spend sums and the any-active flag.
//
// Output ordering is deterministic: groups are emitted in first-appearance
// order of their key, so an unchanged input snapshot aggregates to an
// identical relation.
func Monthly(recs []schema.SpendRecord, opt Options) []schema.SpendMonthly {
	groups := make(map[string]*group, len(recs))

	for i := range recs {
		r := &recs[i]
		if !opt.KeepNonPositive && (r.Spend == nil || *r.Spend <= 0) {
			continue
		}

		gk := r.Key.Canonical()
		if opt.Personnel {
			gk += "\x1f"
			if r.Personnel != nil {
				gk += *r.Personnel
			} else {
				gk += "\x00"
			}
		}

		g, ok := groups[gk]
		if !ok {
			g = &group{
				row: schema.SpendMonthly{
					Key:       r.Key,
					Personnel: r.Personnel,
				},
				first: i,
			}
			groups[gk] = g
		}
		if r.Spend != nil {
			g.row.Spend += *r.Spend
		}
		if r.Status != nil && strings.EqualFold(strings.TrimSpace(*r.Status), "active") {
			g.row.Active = true
		}
	}

	out := make([]schema.SpendMonthly, 0, len(groups))
	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].first < ordered[j].first })
	for _, g := range ordered {
		out = append(out, g.row)
	}
	return out
}
