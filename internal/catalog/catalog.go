// Package catalog models warehouse table identity and the naming-convention
// predicate used to discover source tables.
//
// Discovery is a two-step affair: the warehouse backend issues one
// metadata-only catalog query returning every base table in the configured
// scope, and Filter narrows that list with a Pattern describing one data
// domain (spend tables, budget tables). Zero matches is a first-class
// result, not an error; the union stage degrades to a typed empty relation.
package catalog

import "strings"

// ReconMarker tags tables produced by this engine. Filter unconditionally
// excludes names and schemas containing it so a re-run never reads its own
// output as a source.
const ReconMarker = "recon"

// TableRef is a fully-qualified table identifier. Catalog and Schema may be
// empty on backends without that namespace level (sqlite).
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
}

// FQN renders the dotted fully-qualified name, skipping empty segments.
func (t TableRef) FQN() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Catalog, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// Pattern is the naming-convention predicate for one source domain.
//
// Matching is case-insensitive. Each non-empty constraint group must be
// satisfied: a name matches when it carries ANY listed prefix, ANY listed
// suffix, and ANY listed substring, while carrying NONE of the exclude
// tokens. An empty group imposes no constraint; the zero Pattern matches
// everything (minus the recon guard applied by Filter).
type Pattern struct {
	Prefixes []string `json:"prefixes,omitempty"`
	Suffixes []string `json:"suffixes,omitempty"`
	Contains []string `json:"contains,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
}

// Match reports whether a bare table name satisfies the pattern.
func (p Pattern) Match(name string) bool {
	n := strings.ToLower(name)

	if len(p.Prefixes) > 0 && !anyMatch(n, p.Prefixes, strings.HasPrefix) {
		return false
	}
	if len(p.Suffixes) > 0 && !anyMatch(n, p.Suffixes, strings.HasSuffix) {
		return false
	}
	if len(p.Contains) > 0 && !anyMatch(n, p.Contains, strings.Contains) {
		return false
	}
	if anyMatch(n, p.Excludes, strings.Contains) {
		return false
	}
	return true
}

func anyMatch(name string, tokens []string, fn func(string, string) bool) bool {
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if fn(name, t) {
			return true
		}
	}
	return false
}

// Filter returns the refs whose names satisfy the pattern, with the
// reconciliation guard always applied: refs whose name or schema contains
// ReconMarker are dropped even when the pattern would admit them.
//
// The returned slice is never nil so callers can range over an empty
// discovery result without nil checks.
func Filter(refs []TableRef, p Pattern) []TableRef {
	out := make([]TableRef, 0, len(refs))
	for _, r := range refs {
		if strings.Contains(strings.ToLower(r.Name), ReconMarker) ||
			strings.Contains(strings.ToLower(r.Schema), ReconMarker) {
			continue
		}
		if p.Match(r.Name) {
			out = append(out, r)
		}
	}
	return out
}
