// Package seed loads catalog fixtures into a search index and the source
// directory. The file format is the one the in-memory engine reads from
// MEMORY_SEED_PATH, plus an optional "sources" list.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/utafrali/marketsearch/internal/domain"
)

// DefaultBatchSize is the number of documents sent per bulk request.
const DefaultBatchSize = 500

// Source is one entry of the source directory.
type Source struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// File is a decoded seed file.
type File struct {
	Sources   []Source         `json:"sources"`
	Products  []map[string]any `json:"products"`
	Suppliers []map[string]any `json:"suppliers"`
}

// Indexer writes documents to the index of a mode.
type Indexer interface {
	BulkIndex(ctx context.Context, mode domain.Mode, docs []map[string]any) error
}

// SourceWriter stores source titles.
type SourceWriter interface {
	Upsert(ctx context.Context, id, title string) error
}

// Stats counts what a Run wrote.
type Stats struct {
	Sources   int
	Products  int
	Suppliers int
}

// ReadFile reads and validates a seed file. Every document needs a non-empty
// "id" and every source an id and a title.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	var errs []error
	for i, s := range f.Sources {
		if s.ID == "" || s.Title == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: id and title are required", i))
		}
	}
	for name, docs := range map[string][]map[string]any{"products": f.Products, "suppliers": f.Suppliers} {
		for i, doc := range docs {
			if id, _ := doc[domain.FieldID].(string); id == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: string id is required", name, i))
			}
		}
	}
	return errors.Join(errs...)
}

// Loader writes a seed file to its destinations. A nil Sources skips the
// source directory.
type Loader struct {
	Index     Indexer
	Sources   SourceWriter
	BatchSize int
	Logger    *slog.Logger
}

// Run writes sources first, then products and suppliers in batches. It stops
// at the first failure and reports what was written until then.
func (l *Loader) Run(ctx context.Context, f *File) (Stats, error) {
	var st Stats
	if l.Sources != nil {
		for _, s := range f.Sources {
			if err := l.Sources.Upsert(ctx, s.ID, s.Title); err != nil {
				return st, err
			}
			st.Sources++
		}
	} else if len(f.Sources) > 0 {
		l.Logger.WarnContext(ctx, "no source directory configured, skipping sources",
			slog.Int("count", len(f.Sources)),
		)
	}

	var err error
	if st.Products, err = l.index(ctx, domain.ModeProducts, f.Products); err != nil {
		return st, err
	}
	if st.Suppliers, err = l.index(ctx, domain.ModeSuppliers, f.Suppliers); err != nil {
		return st, err
	}
	return st, nil
}

func (l *Loader) index(ctx context.Context, mode domain.Mode, docs []map[string]any) (int, error) {
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	written := 0
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		if err := l.Index.BulkIndex(ctx, mode, docs[start:end]); err != nil {
			return written, fmt.Errorf("index %s batch at %d: %w", mode, start, err)
		}
		written = end
		l.Logger.InfoContext(ctx, "indexed batch",
			slog.String("mode", mode.String()),
			slog.Int("written", written),
			slog.Int("total", len(docs)),
		)
	}
	return written, nil
}
