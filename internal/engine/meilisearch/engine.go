// Package meilisearch implements the search engine on top of a hosted
// Meilisearch instance.
package meilisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ms "github.com/meilisearch/meilisearch-go"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

const (
	// ensureTimeout bounds index settings bootstrap at construction.
	ensureTimeout = 30 * time.Second
	// taskPollInterval is how often an enqueued task is polled.
	taskPollInterval = 50 * time.Millisecond
)

// Config holds the connection settings for a Meilisearch engine.
type Config struct {
	Host       string
	APIKey     string
	Indices    engine.IndexNames
	HTTPClient *http.Client
	// EnsureIndices declares the filterable and sortable attributes of
	// every index. Meilisearch rejects facets, filters and sorts on
	// attributes that were never declared.
	EnsureIndices bool
}

// Engine is a Meilisearch-backed implementation of engine.SearchEngine.
type Engine struct {
	client  ms.ServiceManager
	indices engine.IndexNames
	logger  *slog.Logger
}

// searchResponse mirrors the fields of the Meilisearch search response that
// the engine consumes.
type searchResponse struct {
	Hits               []json.RawMessage        `json:"hits"`
	FacetDistribution  domain.FacetDistribution `json:"facetDistribution"`
	EstimatedTotalHits int64                    `json:"estimatedTotalHits"`
	TotalHits          int64                    `json:"totalHits"`
	ProcessingTimeMs   int64                    `json:"processingTimeMs"`
}

// New creates a Meilisearch engine. No request is made until the first
// Search or Ping, except when EnsureIndices is set.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Host == "" {
		return nil, errors.New("meilisearch: host is required")
	}

	opts := make([]ms.Option, 0, 2)
	if cfg.APIKey != "" {
		opts = append(opts, ms.WithAPIKey(cfg.APIKey))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, ms.WithCustomClient(cfg.HTTPClient))
	}

	e := &Engine{
		client:  ms.New(cfg.Host, opts...),
		indices: cfg.Indices,
		logger:  logger,
	}

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

// ensureIndex declares the facet attributes of mode as filterable and its
// sort attribute as sortable. Meilisearch creates the index if needed.
func (e *Engine) ensureIndex(ctx context.Context, mode domain.Mode) error {
	name := e.indices.For(mode)
	index := e.client.Index(name)

	filterable := domain.FacetKeys(mode)
	task, err := index.UpdateFilterableAttributesWithContext(ctx, &filterable)
	if err != nil {
		return fmt.Errorf("meilisearch filterable attributes %s: %w", name, err)
	}
	if err := waitTask(ctx, index, task, "filterable attributes "+name); err != nil {
		return err
	}

	sortable := domain.SortableAttributes(mode)
	task, err = index.UpdateSortableAttributesWithContext(ctx, &sortable)
	if err != nil {
		return fmt.Errorf("meilisearch sortable attributes %s: %w", name, err)
	}
	if err := waitTask(ctx, index, task, "sortable attributes "+name); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "meilisearch index settings applied",
		slog.String("index", name),
		slog.Any("filterable", filterable),
		slog.Any("sortable", sortable),
	)
	return nil
}

// waitTask blocks until task finishes and fails unless it succeeded.
func waitTask(ctx context.Context, index ms.IndexManager, task *ms.TaskInfo, op string) error {
	done, err := index.WaitForTaskWithContext(ctx, task.TaskUID, taskPollInterval)
	if err != nil {
		return fmt.Errorf("meilisearch %s: wait for task %d: %w", op, task.TaskUID, err)
	}
	if done.Status != ms.TaskStatusSucceeded {
		return fmt.Errorf("meilisearch %s: task %d %s", op, task.TaskUID, done.Status)
	}
	return nil
}

// BulkIndex adds docs to the index of mode, keyed by their "id" attribute,
// and waits until they are searchable. Documents gain the derived sort
// attributes of engine.IndexDocument.
func (e *Engine) BulkIndex(ctx context.Context, mode domain.Mode, docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	name := e.indices.For(mode)
	index := e.client.Index(name)

	prepared := make([]map[string]any, len(docs))
	for i, doc := range docs {
		prepared[i] = engine.IndexDocument(mode, doc)
	}
	task, err := index.AddDocumentsWithContext(ctx, prepared, domain.FieldID)
	if err != nil {
		return fmt.Errorf("meilisearch add documents %s: %w", name, err)
	}
	if err := waitTask(ctx, index, task, "add documents "+name); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "bulk indexed documents", slog.String("index", name), slog.Int("count", len(docs)))
	return nil
}

// DeleteIndex drops the index of mode. A missing index is not an error.
func (e *Engine) DeleteIndex(ctx context.Context, mode domain.Mode) error {
	name := e.indices.For(mode)
	task, err := e.client.DeleteIndexWithContext(ctx, name)
	if err != nil {
		return fmt.Errorf("meilisearch delete index %s: %w", name, err)
	}
	done, err := e.client.Index(name).WaitForTaskWithContext(ctx, task.TaskUID, taskPollInterval)
	if err != nil {
		return fmt.Errorf("meilisearch delete index %s: wait for task %d: %w", name, task.TaskUID, err)
	}
	if done.Status != ms.TaskStatusSucceeded {
		e.logger.WarnContext(ctx, "meilisearch index not deleted",
			slog.String("index", name),
			slog.String("status", string(done.Status)),
		)
	}
	return nil
}

// Ping checks whether the Meilisearch instance reports itself healthy.
func (e *Engine) Ping(ctx context.Context) error {
	health, err := e.client.HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("meilisearch ping: %w", err)
	}
	if health != nil && health.Status != "available" {
		return fmt.Errorf("meilisearch ping: status %q", health.Status)
	}
	return nil
}

// Search runs query against the index for mode.
func (e *Engine) Search(ctx context.Context, mode domain.Mode, query string, opts engine.SearchOptions) (*domain.RawResult, error) {
	opts = opts.Normalize()
	indexName := e.indices.For(mode)

	res, err := e.client.Index(indexName).SearchWithContext(ctx, query, buildSearchRequest(opts))
	if err != nil {
		return nil, fmt.Errorf("meilisearch search %s: %w: %w", indexName, domain.ErrIndexUnavailable, err)
	}

	// The client's hit representation differs between releases, so the
	// response is re-read through its JSON form.
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("meilisearch search %s: encode response: %w", indexName, err)
	}
	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("meilisearch search %s: decode response: %w", indexName, err)
	}

	out := engine.NewRawResult(mode, len(resp.Hits))
	for i, raw := range resp.Hits {
		if err := engine.AppendHit(out, raw, ""); err != nil {
			e.logger.WarnContext(ctx, "skipping undecodable hit",
				slog.String("index", indexName),
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
		}
	}
	if resp.FacetDistribution != nil {
		out.FacetDistribution = resp.FacetDistribution
	}
	out.Total = resp.EstimatedTotalHits
	if resp.TotalHits > out.Total {
		out.Total = resp.TotalHits
	}
	out.TookMs = resp.ProcessingTimeMs

	e.logger.DebugContext(ctx, "meilisearch search completed",
		slog.String("index", indexName),
		slog.Int("hits", out.Len()),
		slog.Int64("took_ms", out.TookMs),
	)
	return out, nil
}

// buildSearchRequest translates engine options into a Meilisearch request.
func buildSearchRequest(opts engine.SearchOptions) *ms.SearchRequest {
	req := &ms.SearchRequest{
		Limit:                int64(opts.Limit),
		Offset:               int64(opts.Offset),
		Facets:               opts.Facets,
		AttributesToRetrieve: opts.AttributesToRetrieve,
	}
	if expr := opts.Filter.String(); expr != "" {
		req.Filter = expr
	}
	if !opts.Sort.IsRelevance() {
		order := "asc"
		if opts.Sort.Desc {
			order = "desc"
		}
		req.Sort = []string{domain.SortAttribute(opts.Sort.Field) + ":" + order}
	}
	return req
}
