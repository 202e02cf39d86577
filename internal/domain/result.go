package domain

// Fallback literals used when a hit lacks an attribute.
const (
	FallbackUnknown = "Unknown"
	FallbackNA      = "N/A"
)

// UnifiedResult is the single result shape rendered by every search surface,
// regardless of mode. String fields are always populated.
type UnifiedResult struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         Mode   `json:"type"`
	Image        string `json:"image"`
	Country      string `json:"country"`
	Category     string `json:"category"`
	Supplier     string `json:"supplier"`
	Marketplace  string `json:"marketplace"`
	Price        string `json:"price"`
	MOQ          string `json:"moq"`
	ProductCount int64  `json:"product_count"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	SourceID     string `json:"source_id"`
	SourceTitle  string `json:"source_title"`
	URL          string `json:"url"`
}

// FacetOption is one selectable value of a facet group.
type FacetOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// FacetGroup is the UI-facing view of one filterable attribute.
type FacetGroup struct {
	Title    string        `json:"title"`
	Key      string        `json:"key"`
	Param    string        `json:"param"`
	Options  []FacetOption `json:"options"`
	Selected []string      `json:"selected"`
}

// SearchResponse is the outcome of one pipeline run.
type SearchResponse struct {
	Mode        Mode            `json:"mode"`
	Query       string          `json:"query"`
	Results     []UnifiedResult `json:"results"`
	FacetGroups []FacetGroup    `json:"facet_groups"`
	Total       int64           `json:"total"`
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
	TookMs      int64           `json:"took_ms"`
}
