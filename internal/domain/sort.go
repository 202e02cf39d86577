package domain

import (
	"fmt"
	"strings"
)

// Sort is an engine-level ordering instruction. The zero value is relevance.
type Sort struct {
	Field string
	Desc  bool
}

// Sort values accepted by ParseSort.
const (
	SortRelevance        = "relevance"
	SortPriceAsc         = "price:asc"
	SortPriceDesc        = "price:desc"
	SortProductCountAsc  = "product_count:asc"
	SortProductCountDesc = "product_count:desc"
)

// IsRelevance reports whether s keeps the engine's native ranking.
func (s Sort) IsRelevance() bool {
	return s.Field == ""
}

// String renders the sort in "field:direction" form.
func (s Sort) String() string {
	if s.IsRelevance() {
		return SortRelevance
	}
	if s.Desc {
		return s.Field + ":desc"
	}
	return s.Field + ":asc"
}

// sortableFields lists, per mode, the fields that may be used for sorting.
var sortableFields = map[Mode]string{
	ModeProducts:  FieldPrice,
	ModeSuppliers: FieldProductCount,
}

// ParseSort parses a sort value for the given mode. Empty input and
// "relevance" both yield the relevance sort. Both "price:asc" and "price_asc"
// spellings are accepted.
func ParseSort(mode Mode, s string) (Sort, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == SortRelevance {
		return Sort{}, nil
	}

	var field, dir string
	if i := strings.LastIndexAny(v, ":_"); i > 0 {
		field, dir = v[:i], v[i+1:]
	}
	if dir != "asc" && dir != "desc" {
		return Sort{}, fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
	if allowed, ok := sortableFields[mode]; !ok || allowed != field {
		return Sort{}, fmt.Errorf("%w: %q is not sortable in %s mode", ErrInvalidSort, s, mode)
	}
	return Sort{Field: field, Desc: dir == "desc"}, nil
}

// ValidFor reports whether s can be applied in mode.
func (s Sort) ValidFor(mode Mode) bool {
	if s.IsRelevance() {
		return true
	}
	return sortableFields[mode] == s.Field
}
