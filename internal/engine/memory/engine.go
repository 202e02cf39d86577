package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

// Engine is an in-memory implementation of engine.SearchEngine.
// It provides case-insensitive substring matching over the text attributes
// of each document and computes facet distributions over all matches.
// Relevance order is insertion order. Thread-safe via sync.RWMutex.
type Engine struct {
	mu          sync.RWMutex
	products    []domain.ProductHit
	productPos  map[string]int
	suppliers   []domain.SupplierHit
	supplierPos map[string]int
}

// Seed is the on-disk format accepted by LoadFile.
type Seed struct {
	Products  []json.RawMessage `json:"products"`
	Suppliers []json.RawMessage `json:"suppliers"`
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		productPos:  make(map[string]int),
		supplierPos: make(map[string]int),
	}
}

// LoadFile reads a JSON seed file and indexes its documents.
func (e *Engine) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory engine: read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("memory engine: decode seed: %w", err)
	}

	products := make([]domain.ProductHit, 0, len(seed.Products))
	for _, raw := range seed.Products {
		hit, err := engine.DecodeProduct(raw, "")
		if err != nil {
			return fmt.Errorf("memory engine: %w", err)
		}
		products = append(products, hit)
	}
	suppliers := make([]domain.SupplierHit, 0, len(seed.Suppliers))
	for _, raw := range seed.Suppliers {
		hit, err := engine.DecodeSupplier(raw, "")
		if err != nil {
			return fmt.Errorf("memory engine: %w", err)
		}
		suppliers = append(suppliers, hit)
	}

	if err := e.IndexProducts(ctx, products...); err != nil {
		return err
	}
	return e.IndexSuppliers(ctx, suppliers...)
}

// IndexProducts adds or updates product documents. Updated documents keep
// their original position.
func (e *Engine) IndexProducts(_ context.Context, hits ...domain.ProductHit) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, h := range hits {
		if h.ID == "" {
			return errors.New("memory engine: product without id")
		}
		if i, ok := e.productPos[h.ID]; ok {
			e.products[i] = h
			continue
		}
		e.productPos[h.ID] = len(e.products)
		e.products = append(e.products, h)
	}
	return nil
}

// IndexSuppliers adds or updates supplier documents.
func (e *Engine) IndexSuppliers(_ context.Context, hits ...domain.SupplierHit) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, h := range hits {
		if h.ID == "" {
			return errors.New("memory engine: supplier without id")
		}
		if i, ok := e.supplierPos[h.ID]; ok {
			e.suppliers[i] = h
			continue
		}
		e.supplierPos[h.ID] = len(e.suppliers)
		e.suppliers = append(e.suppliers, h)
	}
	return nil
}

// Ping always succeeds.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

// Search executes a search query against the in-memory index.
func (e *Engine) Search(ctx context.Context, mode domain.Mode, query string, opts engine.SearchOptions) (*domain.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory search: %w: %w", domain.ErrIndexUnavailable, err)
	}
	start := time.Now()
	opts = opts.Normalize()
	queryLower := strings.ToLower(strings.TrimSpace(query))

	e.mu.RLock()
	defer e.mu.RUnlock()

	var out *domain.RawResult
	if mode == domain.ModeSuppliers {
		out = e.searchSuppliers(queryLower, opts)
	} else {
		out = e.searchProducts(queryLower, opts)
	}
	out.TookMs = time.Since(start).Milliseconds()
	return out, nil
}

func (e *Engine) searchProducts(queryLower string, opts engine.SearchOptions) *domain.RawResult {
	matched := make([]domain.ProductHit, 0)
	for _, p := range e.products {
		fields := productFields(p)
		if !matchesText(queryLower, fields, domain.FieldTitle, domain.FieldCategory,
			domain.FieldSupplierName, domain.FieldSourceName, domain.FieldCountry) {
			continue
		}
		if !opts.Filter.Match(lookup(fields)) {
			continue
		}
		matched = append(matched, p)
	}

	if !opts.Sort.IsRelevance() && opts.Sort.Field == domain.FieldPrice {
		sortByNumber(matched, func(p domain.ProductHit) (float64, bool) {
			if p.Price == nil {
				return 0, false
			}
			return domain.ParsePrice(*p.Price)
		}, opts.Sort.Desc)
	}

	out := engine.NewRawResult(domain.ModeProducts, opts.Limit)
	out.Total = int64(len(matched))
	for _, key := range opts.Facets {
		out.FacetDistribution[key] = distribution(len(matched), func(i int) (string, bool) {
			return lookup(productFields(matched[i]))(key)
		})
	}
	lo, hi := window(len(matched), opts)
	out.Products = append(out.Products, matched[lo:hi]...)
	return out
}

func (e *Engine) searchSuppliers(queryLower string, opts engine.SearchOptions) *domain.RawResult {
	matched := make([]domain.SupplierHit, 0)
	for _, s := range e.suppliers {
		fields := supplierFields(s)
		if !matchesText(queryLower, fields, domain.FieldTitle, domain.FieldDescription,
			domain.FieldProductKeywords, domain.FieldCity, domain.FieldCountry, domain.FieldLocation) {
			continue
		}
		if !opts.Filter.Match(lookup(fields)) {
			continue
		}
		matched = append(matched, s)
	}

	if !opts.Sort.IsRelevance() && opts.Sort.Field == domain.FieldProductCount {
		sortByNumber(matched, func(s domain.SupplierHit) (float64, bool) {
			if s.ProductCount == nil {
				return 0, false
			}
			return float64(*s.ProductCount), true
		}, opts.Sort.Desc)
	}

	out := engine.NewRawResult(domain.ModeSuppliers, opts.Limit)
	out.Total = int64(len(matched))
	for _, key := range opts.Facets {
		out.FacetDistribution[key] = distribution(len(matched), func(i int) (string, bool) {
			return lookup(supplierFields(matched[i]))(key)
		})
	}
	lo, hi := window(len(matched), opts)
	out.Suppliers = append(out.Suppliers, matched[lo:hi]...)
	return out
}

func productFields(p domain.ProductHit) map[string]*string {
	return map[string]*string{
		domain.FieldID:           &p.ID,
		domain.FieldTitle:        p.Title,
		domain.FieldPrice:        p.Price,
		domain.FieldMOQ:          p.MOQ,
		domain.FieldCountry:      p.Country,
		domain.FieldCategory:     p.Category,
		domain.FieldSupplierName: p.SupplierName,
		domain.FieldSourceName:   p.SourceName,
	}
}

func supplierFields(s domain.SupplierHit) map[string]*string {
	return map[string]*string{
		domain.FieldID:              &s.ID,
		domain.FieldTitle:           s.Title,
		domain.FieldDescription:     s.Description,
		domain.FieldCountry:         s.Country,
		domain.FieldCity:            s.City,
		domain.FieldLocation:        s.Location,
		domain.FieldSourceID:        s.SourceID,
		domain.FieldProductKeywords: s.ProductKeywords,
	}
}

func lookup(fields map[string]*string) func(string) (string, bool) {
	return func(field string) (string, bool) {
		v, ok := fields[field]
		if !ok || v == nil {
			return "", false
		}
		return *v, true
	}
}

// matchesText reports whether queryLower occurs in any of the named fields.
// An empty query matches everything.
func matchesText(queryLower string, fields map[string]*string, names ...string) bool {
	if queryLower == "" {
		return true
	}
	for _, name := range names {
		if v := fields[name]; v != nil && strings.Contains(strings.ToLower(*v), queryLower) {
			return true
		}
	}
	return false
}

// distribution counts the non-empty values returned by valueAt over n
// documents.
func distribution(n int, valueAt func(int) (string, bool)) map[string]int64 {
	counts := make(map[string]int64)
	for i := 0; i < n; i++ {
		if v, ok := valueAt(i); ok && v != "" {
			counts[v]++
		}
	}
	return counts
}

// sortByNumber orders docs by the numeric key. Documents without a key are
// placed last in either direction and keep their relative order.
func sortByNumber[T any](docs []T, key func(T) (float64, bool), desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := key(docs[i])
		b, bok := key(docs[j])
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		if desc {
			return a > b
		}
		return a < b
	})
}

func window(total int, opts engine.SearchOptions) (int, int) {
	lo := opts.Offset
	if lo > total {
		lo = total
	}
	hi := lo + opts.Limit
	if hi > total {
		hi = total
	}
	return lo, hi
}
