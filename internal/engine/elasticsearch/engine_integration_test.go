package elasticsearch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
	esengine "github.com/utafrali/marketsearch/internal/engine/elasticsearch"
)

// newTestEngine creates an Elasticsearch engine for integration tests.
// It skips the test if ELASTICSEARCH_URL is not set.
func newTestEngine(t *testing.T) *esengine.Engine {
	t.Helper()

	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		t.Skip("ELASTICSEARCH_URL not set, skipping Elasticsearch integration tests")
	}

	suffix := time.Now().UnixNano()
	eng, err := esengine.New(esengine.Config{
		URL: esURL,
		Indices: engine.IndexNames{
			Products:  fmt.Sprintf("test_products_%d", suffix),
			Suppliers: fmt.Sprintf("test_suppliers_%d", suffix),
		},
		EnsureIndices: true,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "failed to create Elasticsearch engine")

	t.Cleanup(func() {
		for _, mode := range domain.ValidModes() {
			_ = eng.DeleteIndex(context.Background(), mode)
		}
	})

	return eng
}

func TestES_Ping(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, eng.Ping(ctx))
}

func TestES_SearchProductsWithFacets(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.BulkIndex(ctx, domain.ModeProducts, []map[string]any{
		{"id": "p1", "title": "Office Chair", "category": "Furniture", "country": "China", "price": "$45.00"},
		{"id": "p2", "title": "Gaming Chair", "category": "Furniture", "country": "Vietnam"},
		{"id": "p3", "title": "Desk Lamp", "category": "Lighting", "country": "China"},
	}))

	res, err := eng.Search(ctx, domain.ModeProducts, "chair", engine.SearchOptions{
		Limit:  20,
		Facets: domain.FacetKeys(domain.ModeProducts),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, int64(2), res.FacetDistribution["category"]["Furniture"])
}

func TestES_PriceSortIsNumeric(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.BulkIndex(ctx, domain.ModeProducts, []map[string]any{
		{"id": "p1", "title": "Chair A", "price": "$100"},
		{"id": "p2", "title": "Chair B", "price": "$20"},
		{"id": "p3", "title": "Chair C", "price": "Negotiable"},
		{"id": "p4", "title": "Chair D", "price": "$9.50"},
	}))

	res, err := eng.Search(ctx, domain.ModeProducts, "", engine.SearchOptions{
		Limit: 20,
		Sort:  domain.Sort{Field: domain.FieldPrice},
	})
	require.NoError(t, err)

	ids := make([]string, len(res.Products))
	for i, p := range res.Products {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"p4", "p2", "p1", "p3"}, ids)
}

func TestES_FilterGroupsAreAnded(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.BulkIndex(ctx, domain.ModeSuppliers, []map[string]any{
		{"id": "s1", "title": "Acme Textiles", "country": "India", "source_id": "S1"},
		{"id": "s2", "title": "Beta Textiles", "country": "India", "source_id": "S2"},
		{"id": "s3", "title": "Gamma Textiles", "country": "China", "source_id": "S1"},
	}))

	res, err := eng.Search(ctx, domain.ModeSuppliers, "textiles", engine.SearchOptions{
		Limit: 20,
		Filter: engine.Filter{Groups: []engine.FilterGroup{
			{Field: "country", Values: []string{"India"}},
			{Field: "source_id", Values: []string{"S1"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, res.Suppliers, 1)
	assert.Equal(t, "s1", res.Suppliers[0].ID)
}

func TestES_BulkIndex_Empty(t *testing.T) {
	eng := newTestEngine(t)
	assert.NoError(t, eng.BulkIndex(context.Background(), domain.ModeProducts, nil))
}
