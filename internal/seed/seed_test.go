package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine/memory"
)

const fixture = `{
  "sources": [{"id": "S1", "title": "Alibaba"}],
  "products": [
    {"id": "p1", "title": "USB Cable", "country": "China"},
    {"id": "p2", "title": "HDMI Cable", "country": "China"},
    {"id": "p3", "title": "Alpaca Scarf", "country": "Peru"}
  ],
  "suppliers": [
    {"id": "s1", "title": "Andes Textiles", "source_id": "S1"}
  ]
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type fakeIndex struct {
	batches map[domain.Mode][]int
	failAt  int
	calls   int
}

func (f *fakeIndex) BulkIndex(_ context.Context, mode domain.Mode, docs []map[string]any) error {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return errors.New("es_rejected_execution_exception")
	}
	if f.batches == nil {
		f.batches = make(map[domain.Mode][]int)
	}
	f.batches[mode] = append(f.batches[mode], len(docs))
	return nil
}

type fakeSources map[string]string

func (f fakeSources) Upsert(_ context.Context, id, title string) error {
	f[id] = title
	return nil
}

func newLoader(idx Indexer, src SourceWriter, batch int) *Loader {
	return &Loader{
		Index:     idx,
		Sources:   src,
		BatchSize: batch,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestReadFile(t *testing.T) {
	f, err := ReadFile(writeFixture(t, fixture))

	require.NoError(t, err)
	assert.Equal(t, []Source{{ID: "S1", Title: "Alibaba"}}, f.Sources)
	assert.Len(t, f.Products, 3)
	assert.Len(t, f.Suppliers, 1)
}

func TestReadFile_Invalid(t *testing.T) {
	_, err := ReadFile(writeFixture(t, `{"sources":[{"id":"S1"}],"products":[{"title":"no id"}]}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources[0]")
	assert.Contains(t, err.Error(), "products[0]")

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReadFile_MemoryEngineReadsSameFormat(t *testing.T) {
	path := writeFixture(t, fixture)
	eng := memory.New()

	require.NoError(t, eng.LoadFile(context.Background(), path))
}

func TestLoader_Run_Batches(t *testing.T) {
	f, err := ReadFile(writeFixture(t, fixture))
	require.NoError(t, err)
	idx := &fakeIndex{}
	src := fakeSources{}

	st, err := newLoader(idx, src, 2).Run(context.Background(), f)

	require.NoError(t, err)
	assert.Equal(t, Stats{Sources: 1, Products: 3, Suppliers: 1}, st)
	assert.Equal(t, []int{2, 1}, idx.batches[domain.ModeProducts])
	assert.Equal(t, []int{1}, idx.batches[domain.ModeSuppliers])
	assert.Equal(t, "Alibaba", src["S1"])
}

func TestLoader_Run_StopsOnFailure(t *testing.T) {
	f, err := ReadFile(writeFixture(t, fixture))
	require.NoError(t, err)
	idx := &fakeIndex{failAt: 2}

	st, err := newLoader(idx, nil, 2).Run(context.Background(), f)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index products batch at 2")
	assert.Equal(t, Stats{Products: 2}, st)
}
