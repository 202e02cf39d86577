package engine

import (
	"maps"

	"github.com/utafrali/marketsearch/internal/domain"
)

// IndexDocument returns a copy of doc with the attributes engines derive at
// index time. Products get a numeric price_value when their display price
// parses; otherwise any stale price_value is dropped so they sort last.
func IndexDocument(mode domain.Mode, doc map[string]any) map[string]any {
	out := maps.Clone(doc)
	if out == nil {
		out = map[string]any{}
	}
	if mode != domain.ModeProducts {
		return out
	}

	delete(out, domain.FieldPriceValue)
	switch p := doc[domain.FieldPrice].(type) {
	case string:
		if v, ok := domain.ParsePrice(p); ok {
			out[domain.FieldPriceValue] = v
		}
	case float64:
		out[domain.FieldPriceValue] = p
	case int:
		out[domain.FieldPriceValue] = float64(p)
	}
	return out
}
