// Package report ingests AOI and FI inspection report data: file parsing,
// column-alias resolution, the AOI+FI join, and the lenient value
// coercion the grading engine relies on.
package report

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Count coerces an arbitrary report value to a numeric count. Anything
// that fails to parse becomes 0.0; coercion never fails. This is the
// single leniency boundary for numeric fields.
func Count(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// dateLayouts are tried in order when parsing date strings. Inspection
// exports mix ISO dates, US-style dates, and full timestamps.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
}

// Date coerces an arbitrary report value to a timestamp. Unparseable or
// missing values yield nil rather than an error, which propagates to an
// undefined gap for the row.
func Date(v any) *time.Time {
	switch d := v.(type) {
	case nil:
		return nil
	case time.Time:
		if d.IsZero() {
			return nil
		}
		return &d
	case *time.Time:
		if d == nil || d.IsZero() {
			return nil
		}
		t := *d
		return &t
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}

// String coerces a report value to its string form; nil becomes "".
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
