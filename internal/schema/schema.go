// Package schema defines the typed row shapes and column contracts shared by
// every stage of the reconciliation engine.
//
// The column lists declared here are the single source of truth for the
// shape of the budget relation, the raw spend relation, and the final
// reconciliation output. Source scans project exactly these columns in
// exactly this order, and the materializer creates the output table from the
// same list, so a schema change is made in one place and surfaces as a query
// error everywhere a warehouse table has drifted.
//
// Nullability is modeled with pointers: a nil field is a warehouse NULL.
// Record fields that originate from the "other side" of the outer join stay
// nil when that side had no matching row, which is meaningful to the
// classifier (absence of spend is not the same as zero spend).
package schema

import (
	"strings"
	"time"
)

// Kind is the semantic type of a column, independent of any SQL dialect.
// Warehouse backends map kinds onto their own DDL types.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
)

// Column pairs a column name with its semantic kind.
type Column struct {
	Name string
	Kind Kind
}

// Date layouts used when a backend returns dates as text (sqlite, mysql
// without parseTime).
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Key is the composite dimensional key aligning budget and spend facts.
// All categorical attributes are nullable; Month is the "YYYY-MM" reporting
// period and is expected to be populated on every well-formed row.
//
// Key equality for join purposes is null-safe per field: nil matches nil,
// nil does not match a value. See Canonical.
type Key struct {
	BudgetGroup1   *string
	BudgetGroup2   *string
	Region         *string
	CategoryLevel1 *string
	TrackGroup     *string
	PillarGroup    *string
	ContentGroup   *string
	Platform       *string
	Objective      *string
	Month          string
}

// fields returns the categorical attributes in declared column order.
func (k *Key) fields() []*string {
	return []*string{
		k.BudgetGroup1, k.BudgetGroup2, k.Region, k.CategoryLevel1,
		k.TrackGroup, k.PillarGroup, k.ContentGroup, k.Platform, k.Objective,
	}
}

// Canonical encodes the key into a comparable string. NULLs are encoded with
// a dedicated marker so that nil==nil matches while nil never matches a
// value, which is exactly the null-safe equality the outer join requires.
func (k *Key) Canonical() string {
	var sb strings.Builder
	for _, f := range k.fields() {
		if f == nil {
			sb.WriteByte(0x00)
		} else {
			sb.WriteString(*f)
		}
		sb.WriteByte(0x1f)
	}
	sb.WriteString(k.Month)
	return sb.String()
}

// Coalesce returns a key whose fields prefer the receiver and fall back to
// other. The join uses this with the budget side as receiver, so spend-only
// rows still surface their key values.
func (k Key) Coalesce(other Key) Key {
	pick := func(a, b *string) *string {
		if a != nil {
			return a
		}
		return b
	}
	out := Key{
		BudgetGroup1:   pick(k.BudgetGroup1, other.BudgetGroup1),
		BudgetGroup2:   pick(k.BudgetGroup2, other.BudgetGroup2),
		Region:         pick(k.Region, other.Region),
		CategoryLevel1: pick(k.CategoryLevel1, other.CategoryLevel1),
		TrackGroup:     pick(k.TrackGroup, other.TrackGroup),
		PillarGroup:    pick(k.PillarGroup, other.PillarGroup),
		ContentGroup:   pick(k.ContentGroup, other.ContentGroup),
		Platform:       pick(k.Platform, other.Platform),
		Objective:      pick(k.Objective, other.Objective),
		Month:          k.Month,
	}
	if out.Month == "" {
		out.Month = other.Month
	}
	return out
}

// BudgetRecord is one row of the budget relation at the key+month grain.
//
// ActualBudget is the authoritative comparison figure for classification;
// the initial/adjusted/additional fields and the grouped breakdowns are
// informational and carried through to the output unmodified.
type BudgetRecord struct {
	Key
	Year             *int64
	StartDate        *time.Time
	EndDate          *time.Time
	InitialBudget    *float64
	AdjustedBudget   *float64
	AdditionalBudget *float64
	ActualBudget     *float64

	GroupedMarketingBudget   *float64
	GroupedSupplierBudget    *float64
	GroupedRetailBudget      *float64
	GroupedCustomerBudget    *float64
	GroupedRecruitmentBudget *float64
}

// SpendRecord is one raw spend fact. Many records may share a key+month;
// the aggregator collapses them to the monthly grain.
type SpendRecord struct {
	Key
	Personnel *string
	Spend     *float64
	Status    *string
}

// SpendMonthly is the aggregated spend grain: one row per key+month (plus
// personnel when that grouping is enabled).
type SpendMonthly struct {
	Key
	Personnel *string
	Spend     float64
	Active    bool
}

// StatusMarker renders the aggregate active flag back into the marker
// vocabulary used by the raw facts.
func (s *SpendMonthly) StatusMarker() string {
	if s.Active {
		return "active"
	}
	return "paused"
}

// ReconRow is the outer-join output: the coalesced key, every budget field
// (nil when no budget exists for the key), the aggregated spend fields (nil
// when no spend exists), and the derived reconciliation status label.
type ReconRow struct {
	Key
	Year             *int64
	StartDate        *time.Time
	EndDate          *time.Time
	InitialBudget    *float64
	AdjustedBudget   *float64
	AdditionalBudget *float64
	ActualBudget     *float64

	GroupedMarketingBudget   *float64
	GroupedSupplierBudget    *float64
	GroupedRetailBudget      *float64
	GroupedCustomerBudget    *float64
	GroupedRecruitmentBudget *float64

	Personnel   *string
	Spend       *float64
	SpendStatus *string

	ReconStatus string
}

// keyColumns is the shared dimensional prefix of every relation.
func keyColumns() []Column {
	return []Column{
		{Name: "budget_group_1", Kind: KindString},
		{Name: "budget_group_2", Kind: KindString},
		{Name: "region", Kind: KindString},
		{Name: "category_level_1", Kind: KindString},
		{Name: "track_group", Kind: KindString},
		{Name: "pillar_group", Kind: KindString},
		{Name: "content_group", Kind: KindString},
		{Name: "platform", Kind: KindString},
		{Name: "objective", Kind: KindString},
		{Name: "month", Kind: KindString},
	}
}

// BudgetColumns is the declared schema of every budget source table.
func BudgetColumns() []Column {
	return append(keyColumns(), []Column{
		{Name: "year", Kind: KindInt},
		{Name: "start_date", Kind: KindDate},
		{Name: "end_date", Kind: KindDate},
		{Name: "initial_budget", Kind: KindFloat},
		{Name: "adjusted_budget", Kind: KindFloat},
		{Name: "additional_budget", Kind: KindFloat},
		{Name: "actual_budget", Kind: KindFloat},
		{Name: "grouped_marketing_budget", Kind: KindFloat},
		{Name: "grouped_supplier_budget", Kind: KindFloat},
		{Name: "grouped_retail_budget", Kind: KindFloat},
		{Name: "grouped_customer_budget", Kind: KindFloat},
		{Name: "grouped_recruitment_budget", Kind: KindFloat},
	}...)
}

// SpendColumns is the declared schema of every raw spend source table.
func SpendColumns() []Column {
	return append(keyColumns(), []Column{
		{Name: "personnel", Kind: KindString},
		{Name: "spend", Kind: KindFloat},
		{Name: "status", Kind: KindString},
	}...)
}

// ReconColumns is the fixed, documented schema of the reconciliation output
// table. The materializer creates the table from this list and ReconRow
// values are emitted in the same order; keep the two in sync.
func ReconColumns() []Column {
	cols := append(keyColumns(), []Column{
		{Name: "year", Kind: KindInt},
		{Name: "start_date", Kind: KindDate},
		{Name: "end_date", Kind: KindDate},
		{Name: "initial_budget", Kind: KindFloat},
		{Name: "adjusted_budget", Kind: KindFloat},
		{Name: "additional_budget", Kind: KindFloat},
		{Name: "actual_budget", Kind: KindFloat},
		{Name: "grouped_marketing_budget", Kind: KindFloat},
		{Name: "grouped_supplier_budget", Kind: KindFloat},
		{Name: "grouped_retail_budget", Kind: KindFloat},
		{Name: "grouped_customer_budget", Kind: KindFloat},
		{Name: "grouped_recruitment_budget", Kind: KindFloat},
		{Name: "personnel", Kind: KindString},
		{Name: "spend", Kind: KindFloat},
		{Name: "status", Kind: KindString},
	}...)
	return append(cols, Column{Name: "recon_status", Kind: KindString})
}

// Names flattens a column list into the ordered name list used for
// projection scans and bulk inserts.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Values renders the row into a flat value slice aligned with ReconColumns.
// Nil pointers become SQL NULLs.
func (r *ReconRow) Values() []any {
	return []any{
		strp(r.BudgetGroup1), strp(r.BudgetGroup2), strp(r.Region),
		strp(r.CategoryLevel1), strp(r.TrackGroup), strp(r.PillarGroup),
		strp(r.ContentGroup), strp(r.Platform), strp(r.Objective),
		r.Month,
		intp(r.Year),
		timep(r.StartDate), timep(r.EndDate),
		fltp(r.InitialBudget), fltp(r.AdjustedBudget), fltp(r.AdditionalBudget),
		fltp(r.ActualBudget),
		fltp(r.GroupedMarketingBudget), fltp(r.GroupedSupplierBudget),
		fltp(r.GroupedRetailBudget), fltp(r.GroupedCustomerBudget),
		fltp(r.GroupedRecruitmentBudget),
		strp(r.Personnel), fltp(r.Spend), strp(r.SpendStatus),
		r.ReconStatus,
	}
}

// EmptyBudget and EmptySpend are the typed empty-relation constructors used
// when discovery finds no source tables: downstream stages always receive a
// valid, zero-row relation instead of a missing-table error.
func EmptyBudget() []BudgetRecord { return []BudgetRecord{} }

// EmptySpend returns the typed empty raw spend relation.
func EmptySpend() []SpendRecord { return []SpendRecord{} }

func strp(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intp(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fltp(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timep(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
