package service

import (
	"strings"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/pkg/slug"
)

// supplierSlugFallback is used when a supplier name has no slug-able characters.
const supplierSlugFallback = "supplier"

// Normalize maps the raw hits of one response onto the unified result shape,
// preserving the engine's order. Every string field is populated.
func Normalize(mode domain.Mode, raw *domain.RawResult, titles domain.SourceTitleMap) []domain.UnifiedResult {
	if raw == nil {
		return []domain.UnifiedResult{}
	}
	if mode == domain.ModeSuppliers {
		out := make([]domain.UnifiedResult, 0, len(raw.Suppliers))
		for _, h := range raw.Suppliers {
			out = append(out, NormalizeSupplier(h, titles))
		}
		return out
	}
	out := make([]domain.UnifiedResult, 0, len(raw.Products))
	for _, h := range raw.Products {
		out = append(out, NormalizeProduct(h))
	}
	return out
}

// NormalizeProduct maps one product hit.
func NormalizeProduct(h domain.ProductHit) domain.UnifiedResult {
	return domain.UnifiedResult{
		ID:          h.ID,
		Name:        or(h.Title, domain.FallbackUnknown),
		Type:        domain.ModeProducts,
		Image:       or(h.Image, ""),
		Country:     or(h.Country, domain.FallbackUnknown),
		Category:    or(h.Category, domain.FallbackUnknown),
		Supplier:    or(h.SupplierName, domain.FallbackUnknown),
		Marketplace: or(h.SourceName, domain.FallbackUnknown),
		Price:       or(h.Price, domain.FallbackNA),
		MOQ:         or(h.MOQ, domain.FallbackNA),
		URL:         ProductURL(h.ID),
	}
}

// NormalizeSupplier maps one supplier hit, attaching its resolved source title.
func NormalizeSupplier(h domain.SupplierHit, titles domain.SourceTitleMap) domain.UnifiedResult {
	name := or(h.Title, domain.FallbackUnknown)
	sourceID := or(h.SourceID, "")
	sourceTitle := domain.UnknownSource
	if sourceID != "" {
		sourceTitle = titles.Title(sourceID)
	}
	var count int64
	if h.ProductCount != nil {
		count = *h.ProductCount
	}
	return domain.UnifiedResult{
		ID:           h.ID,
		Name:         name,
		Type:         domain.ModeSuppliers,
		Country:      or(h.Country, domain.FallbackUnknown),
		Marketplace:  sourceTitle,
		ProductCount: count,
		Description:  or(h.Description, ""),
		Location:     supplierLocation(h),
		SourceID:     sourceID,
		SourceTitle:  sourceTitle,
		URL:          SupplierURL(name, h.ID),
	}
}

// ProductURL is the deep link of a product.
func ProductURL(id string) string {
	return "/product/" + id
}

// SupplierURL is the deep link of a supplier, slugged from its display name.
func SupplierURL(name, id string) string {
	s := slug.Generate(name)
	if s == "" {
		s = supplierSlugFallback
	}
	return "/supplier/" + s + "/" + id
}

// supplierLocation prefers the explicit location, then "city, country" from
// whichever parts are present.
func supplierLocation(h domain.SupplierHit) string {
	if loc := or(h.Location, ""); loc != "" {
		return loc
	}
	parts := make([]string, 0, 2)
	if city := or(h.City, ""); city != "" {
		parts = append(parts, city)
	}
	if country := or(h.Country, ""); country != "" {
		parts = append(parts, country)
	}
	if len(parts) == 0 {
		return domain.FallbackUnknown
	}
	return strings.Join(parts, ", ")
}

// or returns the trimmed value of p, or def when p is nil or blank.
func or(p *string, def string) string {
	if p == nil {
		return def
	}
	if v := strings.TrimSpace(*p); v != "" {
		return v
	}
	return def
}
