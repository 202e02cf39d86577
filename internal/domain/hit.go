package domain

// ProductHit is a product document as stored in the products index.
// Optional attributes are pointers so that a missing attribute can be told
// apart from an empty one.
type ProductHit struct {
	ID           string  `json:"id"`
	Title        *string `json:"title,omitempty"`
	Price        *string `json:"price,omitempty"`
	Image        *string `json:"image,omitempty"`
	URL          *string `json:"url,omitempty"`
	MOQ          *string `json:"moq,omitempty"`
	Country      *string `json:"country,omitempty"`
	Category     *string `json:"category,omitempty"`
	SupplierName *string `json:"supplier_name,omitempty"`
	SourceName   *string `json:"source_name,omitempty"`
}

// SupplierHit is a supplier document as stored in the suppliers index.
type SupplierHit struct {
	ID              string  `json:"id"`
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	Country         *string `json:"country,omitempty"`
	City            *string `json:"city,omitempty"`
	Location        *string `json:"location,omitempty"`
	SourceID        *string `json:"source_id,omitempty"`
	ProductCount    *int64  `json:"product_count,omitempty"`
	ProductKeywords *string `json:"product_keywords,omitempty"`
}

// Index attribute names shared by the engine backends.
const (
	FieldID              = "id"
	FieldTitle           = "title"
	FieldPrice           = "price"
	FieldImage           = "image"
	FieldURL             = "url"
	FieldMOQ             = "moq"
	FieldCountry         = "country"
	FieldCategory        = "category"
	FieldSupplierName    = "supplier_name"
	FieldSourceName      = "source_name"
	FieldDescription     = "description"
	FieldCity            = "city"
	FieldLocation        = "location"
	FieldSourceID        = "source_id"
	FieldProductCount    = "product_count"
	FieldProductKeywords = "product_keywords"
)

// ProductAttributes lists the attributes retrieved for product hits.
func ProductAttributes() []string {
	return []string{
		FieldID, FieldTitle, FieldPrice, FieldImage, FieldURL, FieldMOQ,
		FieldCountry, FieldCategory, FieldSupplierName, FieldSourceName,
	}
}

// SupplierAttributes lists the attributes retrieved for supplier hits.
func SupplierAttributes() []string {
	return []string{
		FieldID, FieldTitle, FieldDescription, FieldCountry, FieldCity,
		FieldLocation, FieldSourceID, FieldProductCount, FieldProductKeywords,
	}
}

// AttributesFor returns the retrievable attribute list for the given mode.
func AttributesFor(mode Mode) []string {
	if mode == ModeSuppliers {
		return SupplierAttributes()
	}
	return ProductAttributes()
}

// FacetDistribution maps a facet field to the per-value hit counts the
// engine computed for the current query.
type FacetDistribution map[string]map[string]int64

// RawResult is the engine's answer to a single search request. Exactly one of
// Products or Suppliers is populated, according to Mode.
type RawResult struct {
	Mode              Mode
	Products          []ProductHit
	Suppliers         []SupplierHit
	FacetDistribution FacetDistribution
	Total             int64
	TookMs            int64
}

// Len returns the number of hits in the result.
func (r *RawResult) Len() int {
	if r.Mode == ModeSuppliers {
		return len(r.Suppliers)
	}
	return len(r.Products)
}

// SourceIDs returns the distinct, non-empty source identifiers referenced by
// supplier hits, in first-seen order.
func (r *RawResult) SourceIDs() []string {
	seen := make(map[string]struct{}, len(r.Suppliers))
	ids := make([]string, 0, len(r.Suppliers))
	for _, h := range r.Suppliers {
		if h.SourceID == nil || *h.SourceID == "" {
			continue
		}
		if _, ok := seen[*h.SourceID]; ok {
			continue
		}
		seen[*h.SourceID] = struct{}{}
		ids = append(ids, *h.SourceID)
	}
	return ids
}

// SourceTitleMap maps a source identifier to its display title. It lives for
// a single search response.
type SourceTitleMap map[string]string

// UnknownSource is the title used when a source identifier cannot be resolved.
const UnknownSource = "Unknown Source"

// Title returns the title for id, or UnknownSource.
func (m SourceTitleMap) Title(id string) string {
	if t, ok := m[id]; ok && t != "" {
		return t
	}
	return UnknownSource
}
