// Package fingerprint computes a deterministic hash of a classified
// reconciliation relation.
//
// The engine recomputes its output wholesale on every run; on an unchanged
// source snapshot evaluated with the same as-of date, two runs must produce
// identical output. The fingerprint makes that property observable: it is
// logged with the run summary, so byte-identical reruns are a string
// comparison away instead of a table diff.
package fingerprint

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"recon/internal/schema"
)

// Rows hashes the relation in order. Callers pass the join output, which is
// already deterministically sorted; the hash therefore identifies the exact
// relation content including row order.
func Rows(rows []schema.ReconRow) uint64 {
	h := xxh3.New()
	var scratch [8]byte
	for i := range rows {
		hashRow(h, &rows[i], scratch[:])
	}
	return h.Sum64()
}

func hashRow(h *xxh3.Hasher, r *schema.ReconRow, scratch []byte) {
	writeStr(h, r.Key.Canonical())
	writeInt(h, r.Year, scratch)
	writeTime(h, r.StartDate, scratch)
	writeTime(h, r.EndDate, scratch)
	for _, f := range []*float64{
		r.InitialBudget, r.AdjustedBudget, r.AdditionalBudget, r.ActualBudget,
		r.GroupedMarketingBudget, r.GroupedSupplierBudget, r.GroupedRetailBudget,
		r.GroupedCustomerBudget, r.GroupedRecruitmentBudget, r.Spend,
	} {
		writeFloat(h, f, scratch)
	}
	writeStrPtr(h, r.Personnel)
	writeStrPtr(h, r.SpendStatus)
	writeStr(h, r.ReconStatus)
}

// Each field is preceded by a presence byte so that NULL and zero values
// hash differently.

func writeStr(h *xxh3.Hasher, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.Write([]byte{0x1f})
}

func writeStrPtr(h *xxh3.Hasher, p *string) {
	if p == nil {
		_, _ = h.Write([]byte{0x00, 0x1f})
		return
	}
	_, _ = h.Write([]byte{0x01})
	writeStr(h, *p)
}

func writeInt(h *xxh3.Hasher, p *int64, scratch []byte) {
	if p == nil {
		_, _ = h.Write([]byte{0x00})
		return
	}
	_, _ = h.Write([]byte{0x01})
	binary.LittleEndian.PutUint64(scratch, uint64(*p))
	_, _ = h.Write(scratch)
}

func writeFloat(h *xxh3.Hasher, p *float64, scratch []byte) {
	if p == nil {
		_, _ = h.Write([]byte{0x00})
		return
	}
	_, _ = h.Write([]byte{0x01})
	binary.LittleEndian.PutUint64(scratch, math.Float64bits(*p))
	_, _ = h.Write(scratch)
}

func writeTime(h *xxh3.Hasher, p *time.Time, scratch []byte) {
	if p == nil {
		_, _ = h.Write([]byte{0x00})
		return
	}
	_, _ = h.Write([]byte{0x01})
	binary.LittleEndian.PutUint64(scratch, uint64(p.UTC().Unix()))
	_, _ = h.Write(scratch)
}
