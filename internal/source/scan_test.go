package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"recon/internal/catalog"
	"recon/internal/schema"
	"recon/internal/warehouse"
)

// fakeRows replays a fixed value grid through the cursor contract.
type fakeRows struct {
	data   [][]any
	i      int
	outErr error
	closed bool
}

func (f *fakeRows) Next() bool { f.i++; return f.i <= len(f.data) }

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.i-1]
	for j := range dest {
		*(dest[j].(*any)) = row[j]
	}
	return nil
}

func (f *fakeRows) Err() error { return f.outErr }
func (f *fakeRows) Close()     { f.closed = true }

// fakeRepo serves canned rows per table name.
type fakeRepo struct {
	rows      map[string][][]any
	selectErr error
	seenCols  []string
}

func (f *fakeRepo) Tables(ctx context.Context) ([]catalog.TableRef, error) { return nil, nil }

func (f *fakeRepo) Select(ctx context.Context, ref catalog.TableRef, columns []string) (warehouse.Rows, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	f.seenCols = columns
	return &fakeRows{data: f.rows[ref.Name]}, nil
}

func (f *fakeRepo) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	return nil
}

func (f *fakeRepo) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) SwapTable(ctx context.Context, staging, target string) error { return nil }
func (f *fakeRepo) DropTable(ctx context.Context, table string) error           { return nil }
func (f *fakeRepo) Close()                                                      {}

// budgetRow builds a 22-value row in BudgetColumns order. The key carries
// only budget_group_1 and month; overrides patch individual positions.
func budgetRow(group, month string, overrides map[int]any) []any {
	vals := make([]any, 22)
	vals[0] = group
	vals[9] = month
	for i, v := range overrides {
		vals[i] = v
	}
	return vals
}

func TestScanBudget_Conversions(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{rows: map[string][][]any{
		"budget_main": {
			budgetRow("campaigns", "2025-05", map[int]any{
				1:  []byte("digital"), // drivers may hand text back as bytes
				10: int64(2025),
				11: start,
				12: "2025-12-31 00:00:00", // timestamp text keeps its date part
				13: 100.5,
				14: []byte("200.25"),
				16: int64(300),
			}),
		},
	}}
	s := &Scanner{Repo: repo}

	recs, err := s.ScanBudget(context.Background(), []catalog.TableRef{{Name: "budget_main"}})
	if err != nil {
		t.Fatalf("ScanBudget: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	r := recs[0]

	if *r.BudgetGroup1 != "campaigns" || *r.BudgetGroup2 != "digital" {
		t.Fatalf("key = %+v", r.Key)
	}
	if r.Region != nil {
		t.Fatalf("NULL region = %v", *r.Region)
	}
	if r.Month != "2025-05" {
		t.Fatalf("month = %q", r.Month)
	}
	if *r.Year != 2025 {
		t.Fatalf("year = %d", *r.Year)
	}
	if !r.StartDate.Equal(start) {
		t.Fatalf("start = %v", r.StartDate)
	}
	if got := r.EndDate.Format(schema.DateLayout); got != "2025-12-31" {
		t.Fatalf("end = %q", got)
	}
	if *r.InitialBudget != 100.5 || *r.AdjustedBudget != 200.25 || *r.ActualBudget != 300 {
		t.Fatalf("budgets = %v %v %v", r.InitialBudget, r.AdjustedBudget, r.ActualBudget)
	}
	if r.AdditionalBudget != nil {
		t.Fatalf("NULL budget = %v", *r.AdditionalBudget)
	}

	// The projection must request the full declared column list, in order.
	want := schema.Names(schema.BudgetColumns())
	if len(repo.seenCols) != len(want) || repo.seenCols[0] != want[0] || repo.seenCols[21] != want[21] {
		t.Fatalf("projected columns = %v", repo.seenCols)
	}
}

func TestScanBudget_MalformedValueIsFatal(t *testing.T) {
	repo := &fakeRepo{rows: map[string][][]any{
		"budget_main": {
			budgetRow("campaigns", "2025-05", map[int]any{16: []byte("12x3")}),
		},
	}}
	s := &Scanner{Repo: repo}

	_, err := s.ScanBudget(context.Background(), []catalog.TableRef{{Name: "budget_main"}})
	if err == nil {
		t.Fatal("malformed numeric did not fail the scan")
	}
	// The error names the table and the offending column.
	for _, frag := range []string{"budget_main", "actual_budget", "malformed numeric"} {
		if !strings.Contains(err.Error(), frag) {
			t.Fatalf("error %q missing %q", err, frag)
		}
	}
}

func TestScanBudget_MultipleTablesInDiscoveryOrder(t *testing.T) {
	repo := &fakeRepo{rows: map[string][][]any{
		"budget_a": {
			budgetRow("a1", "2025-05", nil),
			budgetRow("a2", "2025-05", nil),
		},
		"budget_b": {
			budgetRow("b1", "2025-05", nil),
		},
	}}
	s := &Scanner{Repo: repo, Workers: 2}

	refs := []catalog.TableRef{{Name: "budget_a"}, {Name: "budget_b"}}
	recs, err := s.ScanBudget(context.Background(), refs)
	if err != nil {
		t.Fatalf("ScanBudget: %v", err)
	}
	got := []string{}
	for _, r := range recs {
		got = append(got, *r.BudgetGroup1)
	}
	want := []string{"a1", "a2", "b1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestScanSpend_Conversions(t *testing.T) {
	row := make([]any, 13)
	row[2] = "emea"
	row[9] = " 2025-05 " // month text is trimmed
	row[10] = []byte("alice")
	row[11] = "42.5"
	row[12] = "active"

	repo := &fakeRepo{rows: map[string][][]any{"spend_fb": {row}}}
	s := &Scanner{Repo: repo}

	recs, err := s.ScanSpend(context.Background(), []catalog.TableRef{{Name: "spend_fb"}})
	if err != nil {
		t.Fatalf("ScanSpend: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d", len(recs))
	}
	r := recs[0]
	if r.Month != "2025-05" {
		t.Fatalf("month = %q", r.Month)
	}
	if *r.Personnel != "alice" || *r.Spend != 42.5 || *r.Status != "active" {
		t.Fatalf("rec = %+v", r)
	}
}

func TestScan_EmptyDiscovery(t *testing.T) {
	s := &Scanner{Repo: &fakeRepo{}}

	b, err := s.ScanBudget(context.Background(), nil)
	if err != nil || b == nil || len(b) != 0 {
		t.Fatalf("ScanBudget(nil) = %v, %v", b, err)
	}
	sp, err := s.ScanSpend(context.Background(), nil)
	if err != nil || sp == nil || len(sp) != 0 {
		t.Fatalf("ScanSpend(nil) = %v, %v", sp, err)
	}
}

func TestScan_SelectErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	s := &Scanner{Repo: &fakeRepo{selectErr: boom}}

	_, err := s.ScanSpend(context.Background(), []catalog.TableRef{{Schema: "public", Name: "spend_fb"}})
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "public.spend_fb") {
		t.Fatalf("error %q does not name the table", err)
	}
}
