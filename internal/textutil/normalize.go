// Package textutil provides identifier and tag normalization helpers.
//
// Dimension values and status labels in this pipeline may contain
// diacritics, spaces, and punctuation (the upstream sheets are maintained in
// Vietnamese). Metric tags and derived table identifiers need a stable,
// lowercase ASCII form, so normalization is centralized here instead of
// being re-implemented at each call site.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var dReplacer = strings.NewReplacer("đ", "d", "Đ", "D")

// Normalize converts arbitrary text into a lowercase ASCII identifier:
// diacritics are stripped (NFD, drop combining marks, NFC), any remaining
// non-alphanumeric run collapses to a single underscore, and leading or
// trailing underscores are trimmed.
//
//	Normalize("Chương Trình")               => "chuong_trinh"
//	Normalize("Over Budget (Running)")      => "over_budget_running"
func Normalize(s string) string {
	// đ is a base letter, not a combining form, so NFD leaves it alone.
	s = dReplacer.Replace(s)
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var sb strings.Builder
	sb.Grow(len(ascii))
	lastUnderscore := true // trims leading separators
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "_")
}
