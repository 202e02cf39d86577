package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

// ensureTimeout bounds index bootstrap at construction.
const ensureTimeout = 30 * time.Second

// Config holds the connection settings for an Elasticsearch engine.
type Config struct {
	URL     string
	Indices engine.IndexNames
	// Transport overrides the HTTP transport used by the client.
	Transport http.RoundTripper
	// EnsureIndices creates missing indices with the built-in mappings.
	EnsureIndices bool
}

// Engine serves product and supplier searches from Elasticsearch.
type Engine struct {
	client  *elasticsearch.Client
	indices engine.IndexNames
	logger  *slog.Logger
}

// New connects to cfg.URL. Connection problems surface on the first call,
// except when EnsureIndices is set, which talks to the cluster immediately.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	e := &Engine{client: client, indices: cfg.Indices, logger: logger}

	if cfg.EnsureIndices {
		ctx, cancel := context.WithTimeout(context.Background(), ensureTimeout)
		defer cancel()
		for _, mode := range domain.ValidModes() {
			if err := e.ensureIndex(ctx, mode); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// Ping reports whether the cluster answers.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := esapi.PingRequest{}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (e *Engine) ensureIndex(ctx context.Context, mode domain.Mode) error {
	name := e.indices.For(mode)

	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch index %s exists: %w", name, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: name,
		Body:  strings.NewReader(buildIndexMapping(mode)),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch create index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("elasticsearch create index "+name, res)
	}

	e.logger.InfoContext(ctx, "created elasticsearch index", slog.String("index", name))
	return nil
}

// Search runs one query against the index of mode.
func (e *Engine) Search(ctx context.Context, mode domain.Mode, query string, opts engine.SearchOptions) (*domain.RawResult, error) {
	opts = opts.Normalize()
	index := e.indices.For(mode)

	body, err := json.Marshal(newSearchRequest(mode, query, opts))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search %s: encode: %w", index, err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search %s: %w: %w", index, domain.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, responseError("elasticsearch search "+index, res))
	}

	var sr searchResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&sr); err != nil {
		return nil, fmt.Errorf("elasticsearch search %s: decode: %w", index, err)
	}
	return e.toRawResult(ctx, mode, index, &sr), nil
}

func (e *Engine) toRawResult(ctx context.Context, mode domain.Mode, index string, sr *searchResponse) *domain.RawResult {
	out := engine.NewRawResult(mode, len(sr.Hits.Hits))
	out.Total = sr.Hits.Total.Value
	out.TookMs = sr.Took

	for i, hit := range sr.Hits.Hits {
		if err := engine.AppendHit(out, hit.Source, hit.ID); err != nil {
			e.logger.WarnContext(ctx, "skipping undecodable hit",
				slog.String("index", index),
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
		}
	}
	for field, agg := range sr.Aggregations {
		counts := make(map[string]int64, len(agg.Buckets))
		for _, b := range agg.Buckets {
			counts[fmt.Sprint(b.Key)] = b.DocCount
		}
		out.FacetDistribution[field] = counts
	}
	return out
}

// BulkIndex upserts docs into the index of mode and refreshes it. Each
// document is keyed by its "id" attribute and gains the derived sort
// attributes of engine.IndexDocument.
func (e *Engine) BulkIndex(ctx context.Context, mode domain.Mode, docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	index := e.indices.For(mode)

	var nd bytes.Buffer
	enc := json.NewEncoder(&nd)
	for _, doc := range docs {
		meta := map[string]map[string]string{
			"index": {"_id": fmt.Sprint(doc[domain.FieldID])},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("elasticsearch bulk %s: encode action: %w", index, err)
		}
		if err := enc.Encode(engine.IndexDocument(mode, doc)); err != nil {
			return fmt.Errorf("elasticsearch bulk %s: encode document: %w", index, err)
		}
	}

	res, err := esapi.BulkRequest{
		Index:   index,
		Body:    &nd,
		Refresh: "true",
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("elasticsearch bulk "+index, res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("elasticsearch bulk %s: decode: %w", index, err)
	}
	if br.Errors {
		return fmt.Errorf("elasticsearch bulk %s: partial failure: %s", index, strings.Join(br.failures(), "; "))
	}

	e.logger.InfoContext(ctx, "bulk indexed documents", slog.String("index", index), slog.Int("count", len(docs)))
	return nil
}

// DeleteIndex drops the index of mode. A missing index is not an error.
func (e *Engine) DeleteIndex(ctx context.Context, mode domain.Mode) error {
	index := e.indices.For(mode)
	res, err := esapi.IndicesDeleteRequest{Index: []string{index}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete index "+index, res)
	}
	return nil
}
