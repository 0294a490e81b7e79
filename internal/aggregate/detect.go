package aggregate

import (
	"strings"
	"unicode"

	"github.com/KaramelBytes/enrolstat/internal/csvstream"
)

// ColumnRoles is the frozen outcome of column detection.
type ColumnRoles struct {
	GroupKey   string
	Categories []string
	Ignored    []string
}

// Token lists are ordered; detection walks them in this order.
var (
	groupKeyFallbacks = []string{"state", "district", "region", "area"}

	denySubstrings = []string{"date", "pincode", "zip", "code", "registrar", "source", "identifier"}
	denyWords      = []string{"id", "pin", "sno", "year", "month", "week", "quarter", "period"}

	allowSubstrings = []string{
		"age", "yrs", "years", "enrol", "update", "count", "total",
		"bio", "demo", "child", "adult", "senior",
		"0_5", "5_17", "0-5", "5-17", "17", "18",
		"greater", "plus", "above",
	}
)

// DetectRoles picks the grouping key and the category columns from the
// header and a sample of records. It fails with *SchemaDetectionError when
// no category column can be found.
func DetectRoles(fields []string, samples []csvstream.Record) (ColumnRoles, error) {
	if len(fields) == 0 {
		return ColumnRoles{}, &SchemaDetectionError{Reason: "header is empty"}
	}
	roles := ColumnRoles{GroupKey: pickGroupKey(fields)}

	var others, candidates []string
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup || f == roles.GroupKey {
			continue
		}
		seen[f] = struct{}{}
		others = append(others, f)
		if !denied(f) {
			candidates = append(candidates, f)
		}
	}
	for _, f := range candidates {
		if allowed(f) {
			roles.Categories = append(roles.Categories, f)
		}
	}
	if len(roles.Categories) == 0 {
		for _, f := range candidates {
			if v, ok := firstValue(f, samples); ok {
				if n, ok := ParseCount(v); ok && n > 0 {
					roles.Categories = append(roles.Categories, f)
				}
			}
		}
	}
	if len(roles.Categories) == 0 {
		return ColumnRoles{}, &SchemaDetectionError{Fields: append([]string(nil), fields...)}
	}
	in := make(map[string]struct{}, len(roles.Categories))
	for _, c := range roles.Categories {
		in[c] = struct{}{}
	}
	for _, f := range others {
		if _, ok := in[f]; !ok {
			roles.Ignored = append(roles.Ignored, f)
		}
	}
	return roles, nil
}

func pickGroupKey(fields []string) string {
	for _, f := range fields {
		if normalize(f) == "state" {
			return f
		}
	}
	for _, tok := range groupKeyFallbacks {
		for _, f := range fields {
			if strings.Contains(normalize(f), tok) {
				return f
			}
		}
	}
	return fields[0]
}

func denied(field string) bool {
	name := normalize(field)
	// "update" is an allowed token that happens to contain "date".
	masked := strings.ReplaceAll(name, "update", "")
	for _, s := range denySubstrings {
		if strings.Contains(masked, s) {
			return true
		}
	}
	for _, w := range words(name) {
		for _, d := range denyWords {
			if w == d {
				return true
			}
		}
	}
	return false
}

func allowed(field string) bool {
	name := normalize(field)
	if name == "" {
		return false
	}
	if unicode.IsDigit(rune(name[0])) {
		return true
	}
	for _, s := range allowSubstrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func firstValue(field string, samples []csvstream.Record) (string, bool) {
	for _, rec := range samples {
		if v := strings.TrimSpace(rec[field]); v != "" {
			return v, true
		}
	}
	return "", false
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// words splits a lower-cased name on anything that is not a letter or digit.
func words(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
