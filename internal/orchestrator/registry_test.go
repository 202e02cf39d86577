package orchestrator

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine/memory"
	"github.com/utafrali/marketsearch/internal/service"
)

func newTestRegistry(search Searcher) *Registry {
	r := NewRegistry(search, service.NewPreferences(nil, newTestLogger()), noDebounceConfig, time.Minute, newTestLogger())
	return r
}

func TestRegistry_CreateGetClose(t *testing.T) {
	r := newTestRegistry(newFakeSearcher())
	ctx := context.Background()

	o, err := r.Create(ctx, CreateRequest{Surface: "modal", ClientID: "c1"})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID())
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(o.ID())
	require.NoError(t, err)
	assert.Same(t, o, got)

	require.NoError(t, r.Close(o.ID()))
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, o.SetQuery("x"), ErrClosed)

	_, err = r.Get(o.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Close(o.ID()), ErrSessionNotFound)
}

func TestRegistry_CreateRejectsUnknownSurface(t *testing.T) {
	r := newTestRegistry(newFakeSearcher())

	_, err := r.Create(context.Background(), CreateRequest{Surface: "banner"})
	assert.ErrorIs(t, err, domain.ErrInvalidSurface)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SurfacesOfOneClientShareMode(t *testing.T) {
	r := newTestRegistry(newFakeSearcher())
	defer r.CloseAll()
	ctx := context.Background()

	full, err := r.Create(ctx, CreateRequest{Surface: "full", ClientID: "c1"})
	require.NoError(t, err)
	require.NoError(t, full.SetMode(ctx, domain.ModeSuppliers))

	quick, err := r.Create(ctx, CreateRequest{Surface: "quick", ClientID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSuppliers, quick.State().Mode)

	other, err := r.Create(ctx, CreateRequest{Surface: "quick", ClientID: "c2"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeProducts, other.State().Mode)

	r.CloseAll()
	assert.Equal(t, 0, r.Len())

	fresh, err := r.Create(ctx, CreateRequest{Surface: "quick", ClientID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeProducts, fresh.State().Mode, "unpersisted handle is dropped with its last session")
}

func TestRegistry_SweepExpiresIdleSessions(t *testing.T) {
	r := newTestRegistry(newFakeSearcher())
	defer r.CloseAll()
	ctx := context.Background()

	idle, err := r.Create(ctx, CreateRequest{Surface: "modal"})
	require.NoError(t, err)
	watched, err := r.Create(ctx, CreateRequest{Surface: "full"})
	require.NoError(t, err)
	_, cancel := watched.Subscribe()
	defer cancel()

	assert.Equal(t, 0, r.Sweep(time.Now()))
	assert.Equal(t, 1, r.Sweep(time.Now().Add(2*time.Minute)))

	_, err = r.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(watched.ID())
	assert.NoError(t, err)
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	r := newTestRegistry(newFakeSearcher())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_FullPageSessionFromURL(t *testing.T) {
	eng := memory.New()
	require.NoError(t, eng.IndexProducts(context.Background(),
		domain.ProductHit{ID: "p1", Title: ptr("USB Cable"), Category: ptr("Electronics"), Country: ptr("China")},
		domain.ProductHit{ID: "p2", Title: ptr("Cable Knit Sweater"), Category: ptr("Apparel"), Country: ptr("Peru")},
	))
	svc := service.NewSearchService(eng, service.NewResolver(nil, newTestLogger()), nil, newTestLogger())
	r := newTestRegistry(svc)
	defer r.CloseAll()

	o, err := r.Create(context.Background(), CreateRequest{
		Surface: "full",
		Params:  url.Values{"q": {"cable"}, "category": {"Electronics"}},
	})
	require.NoError(t, err)

	st := waitStatus(t, o, StatusSuccess)
	require.Len(t, st.Results, 1)
	assert.Equal(t, "p1", st.Results[0].ID)
	assert.Equal(t, map[string][]string{"category": {"Electronics"}}, st.ActiveFilters)
	assert.Equal(t, "/search?mode=products&q=cable", st.URL)

	require.NoError(t, o.ClearFilters())
	require.Eventually(t, func() bool {
		s := o.State()
		return s.Status == StatusSuccess && len(s.Results) == 2
	}, waitFor, tick)

	link, err := o.Select("p2")
	require.NoError(t, err)
	assert.Equal(t, "/product/p2", link)
}

func ptr[T any](v T) *T { return &v }
