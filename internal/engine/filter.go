package engine

import "strings"

// FilterGroup is a disjunction of equality clauses on a single field.
type FilterGroup struct {
	Field  string
	Values []string
}

// Filter is a conjunction of filter groups. Groups without values contribute
// nothing.
type Filter struct {
	Groups []FilterGroup
}

// Active returns the groups that carry at least one value, in order.
func (f Filter) Active() []FilterGroup {
	out := make([]FilterGroup, 0, len(f.Groups))
	for _, g := range f.Groups {
		if len(g.Values) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// IsEmpty reports whether the filter restricts nothing.
func (f Filter) IsEmpty() bool {
	return len(f.Active()) == 0
}

// String renders the filter in the index filter syntax, for example
// (category = "Electronics" OR category = "Apparel") AND (country = "China").
// An empty filter renders as the empty string.
func (f Filter) String() string {
	active := f.Active()
	if len(active) == 0 {
		return ""
	}

	clauses := make([]string, 0, len(active))
	for _, g := range active {
		terms := make([]string, 0, len(g.Values))
		for _, v := range g.Values {
			terms = append(terms, g.Field+` = "`+EscapeValue(v)+`"`)
		}
		clauses = append(clauses, "("+strings.Join(terms, " OR ")+")")
	}
	return strings.Join(clauses, " AND ")
}

// Match reports whether a document satisfies the filter. lookup returns the
// document's value for a field.
func (f Filter) Match(lookup func(field string) (string, bool)) bool {
	for _, g := range f.Active() {
		v, ok := lookup(g.Field)
		if !ok {
			return false
		}
		hit := false
		for _, want := range g.Values {
			if v == want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

var filterValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// EscapeValue escapes a value for use inside a double-quoted filter literal.
func EscapeValue(v string) string {
	return filterValueEscaper.Replace(v)
}
