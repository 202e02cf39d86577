package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// FieldPriceValue holds the numeric amount of FieldPrice. Indexers derive it
// from the display price; engines sort on it.
const FieldPriceValue = "price_value"

// ParsePrice extracts the amount from a display price such as "$12.50" or
// "€1,200". Leading currency symbols and thousands separators are stripped.
// Only the first number counts; a price with no digits does not parse.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimLeftFunc(strings.TrimSpace(s), func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ','
	})
	if end >= 0 {
		s = s[:end]
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SortAttribute returns the index attribute that orders by field. Display
// prices are text, so a price sort uses the derived numeric attribute.
func SortAttribute(field string) string {
	if field == FieldPrice {
		return FieldPriceValue
	}
	return field
}

// SortableAttributes lists the index attributes mode can be sorted on.
func SortableAttributes(mode Mode) []string {
	field, ok := sortableFields[mode]
	if !ok {
		return nil
	}
	return []string{SortAttribute(field)}
}
