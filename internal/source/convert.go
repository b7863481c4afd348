package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"recon/internal/schema"
)

// Drivers disagree on what they hand back for NULLable columns: pgx scans
// into typed pointers cleanly, while database/sql backends return []byte for
// text, int64 for booleans, and strings for dates. Each source row is scanned
// into a []any of nils and coerced field by field, so one conversion layer
// covers every backend.

func toStringPtr(v any) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &t, nil
	case []byte:
		s := string(t)
		return &s, nil
	case *string:
		return t, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string", v)
	}
}

func toFloatPtr(v any) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case float32:
		f := float64(t)
		return &f, nil
	case int64:
		f := float64(t)
		return &f, nil
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	default:
		return nil, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed numeric %q: %w", s, err)
	}
	return &f, nil
}

func toIntPtr(v any) (*int64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return &t, nil
	case int32:
		n := int64(t)
		return &n, nil
	case int:
		n := int64(t)
		return &n, nil
	case []byte:
		return parseInt(string(t))
	case string:
		return parseInt(t)
	default:
		return nil, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func parseInt(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed integer %q: %w", s, err)
	}
	return &n, nil
}

func toTimePtr(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		return t, nil
	case []byte:
		return parseDate(string(t))
	case string:
		return parseDate(t)
	default:
		return nil, fmt.Errorf("cannot convert %T to date", v)
	}
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// Some backends store dates as full timestamps; keep the date part.
	if len(s) > len(schema.DateLayout) {
		s = s[:len(schema.DateLayout)]
	}
	d, err := time.Parse(schema.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return &d, nil
}

// toMonth coerces the reporting period column. A NULL month never joins
// meaningfully but is carried as an empty string rather than rejected.
func toMonth(v any) (string, error) {
	p, err := toStringPtr(v)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	return strings.TrimSpace(*p), nil
}
