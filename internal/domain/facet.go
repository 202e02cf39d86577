package domain

// FacetDef describes one filterable attribute of a mode.
type FacetDef struct {
	// Title is the display label.
	Title string
	// Key is the index field the facet filters on.
	Key string
	// Param is the URL query parameter that seeds the facet.
	Param string
}

// Facet URL parameters.
const (
	ParamCategory = "category"
	ParamCountry  = "country"
	ParamSource   = "source"
)

var (
	productFacets = []FacetDef{
		{Title: "Category", Key: FieldCategory, Param: ParamCategory},
		{Title: "Country", Key: FieldCountry, Param: ParamCountry},
		{Title: "Source", Key: FieldSourceName, Param: ParamSource},
	}
	supplierFacets = []FacetDef{
		{Title: "Country", Key: FieldCountry, Param: ParamCountry},
		{Title: "Source", Key: FieldSourceID, Param: ParamSource},
	}
)

// FacetsFor returns the facet definitions for mode, in display order.
func FacetsFor(mode Mode) []FacetDef {
	src := productFacets
	if mode == ModeSuppliers {
		src = supplierFacets
	}
	out := make([]FacetDef, len(src))
	copy(out, src)
	return out
}

// FacetKeys returns the index fields that carry facets in mode.
func FacetKeys(mode Mode) []string {
	defs := FacetsFor(mode)
	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}

// LookupFacet finds the facet definition of mode by index key or URL param.
func LookupFacet(mode Mode, keyOrParam string) (FacetDef, bool) {
	for _, d := range FacetsFor(mode) {
		if d.Key == keyOrParam || d.Param == keyOrParam {
			return d, true
		}
	}
	return FacetDef{}, false
}
