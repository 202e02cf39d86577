package engine

import (
	"context"

	"github.com/utafrali/marketsearch/internal/domain"
)

// MaxLimit caps the number of hits a single request may ask for.
const MaxLimit = 50

// SearchOptions carries everything besides the query text that shapes one
// index request.
type SearchOptions struct {
	Limit                int
	Offset               int
	Filter               Filter
	Sort                 domain.Sort
	Facets               []string
	AttributesToRetrieve []string
}

// Normalize clamps Limit to 1..MaxLimit and Offset to >= 0.
func (o SearchOptions) Normalize() SearchOptions {
	if o.Limit < 1 {
		o.Limit = 1
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// SearchEngine queries the external product and supplier indices.
// Implementations may use Meilisearch, Elasticsearch, or in-memory storage.
// Failures to reach the backend are reported as domain.ErrIndexUnavailable.
type SearchEngine interface {
	// Search runs query against the index for mode.
	Search(ctx context.Context, mode domain.Mode, query string, opts SearchOptions) (*domain.RawResult, error)

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}

// IndexNames maps each mode to the index holding its documents.
type IndexNames struct {
	Products  string
	Suppliers string
}

// DefaultIndexNames are used when no index names are configured.
var DefaultIndexNames = IndexNames{Products: "products", Suppliers: "suppliers"}

// For returns the index name for mode, falling back to the defaults.
func (n IndexNames) For(mode domain.Mode) string {
	if mode == domain.ModeSuppliers {
		if n.Suppliers != "" {
			return n.Suppliers
		}
		return DefaultIndexNames.Suppliers
	}
	if n.Products != "" {
		return n.Products
	}
	return DefaultIndexNames.Products
}
