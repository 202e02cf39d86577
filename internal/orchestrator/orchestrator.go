// Package orchestrator keeps the live state of one search surface: query
// text, debounce, mode, facet selections, sort and page. It issues pipeline
// runs and applies their responses in issuance order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/marketsearch/internal/debounce"
	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/service"
	"github.com/utafrali/marketsearch/pkg/logger"
)

// DefaultQueryTimeout bounds a single pipeline run.
const DefaultQueryTimeout = 10 * time.Second

// subscriberBuffer is the number of snapshots a slow subscriber may lag by
// before its oldest pending snapshot is dropped.
const subscriberBuffer = 4

var (
	ErrClosed        = errors.New("search session closed")
	ErrUnknownResult = errors.New("result not in current results")
	ErrNotSupported  = errors.New("operation not supported on this surface")
	ErrInvalidPage   = errors.New("invalid page")
)

// Searcher runs one pipeline pass. *service.SearchService implements it.
type Searcher interface {
	Search(ctx context.Context, req service.SearchRequest) (*domain.SearchResponse, error)
	ReportOutcome(ctx context.Context, surface, clientID string, req service.SearchRequest, resp *domain.SearchResponse)
}

// Config tunes orchestrator timing.
type Config struct {
	Debounce     time.Duration
	QueryTimeout time.Duration
}

// Options describe the session an orchestrator serves.
type Options struct {
	ID      string
	Surface Surface
	Seed    Seed
	Config  Config
}

// Orchestrator drives one surface session.
type Orchestrator struct {
	id       string
	surface  Surface
	search   Searcher
	mode     *service.ModeHandle
	debounce *debounce.Debouncer
	timeout  time.Duration
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	token      uint64
	query      string
	committed  string
	activeMode domain.Mode
	selections service.Selections
	sort       domain.Sort
	page       int
	state      State
	subs       map[uint64]chan State
	nextSub    uint64
	lastActive time.Time
	closed     bool
}

// New creates an orchestrator. A valid seed mode is written through the mode
// handle. A non-blank seed query is issued at once, without debounce.
func New(opts Options, search Searcher, mode *service.ModeHandle, log *slog.Logger) *Orchestrator {
	if mode == nil {
		mode = service.NewModeHandle(domain.DefaultMode)
	}
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.Config.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	log = log.With(
		slog.String("session_id", opts.ID),
		slog.String("surface", opts.Surface.Name),
	)
	if cid := mode.ClientID(); cid != "" {
		log = log.With(slog.String("client_id", cid))
	}
	ctx, cancel := context.WithCancel(logger.NewContext(context.Background(), log))

	if opts.Seed.Mode.IsValid() {
		mode.Set(ctx, opts.Seed.Mode)
	}

	o := &Orchestrator{
		id:         opts.ID,
		surface:    opts.Surface,
		search:     search,
		mode:       mode,
		debounce:   debounce.New(opts.Config.Debounce),
		timeout:    timeout,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		activeMode: mode.Mode(),
		selections: service.Selections{},
		page:       1,
		subs:       make(map[uint64]chan State),
		lastActive: time.Now(),
	}
	if opts.Surface.ExposesFacets && opts.Seed.Selections != nil {
		o.selections = opts.Seed.Selections.Clone()
	}
	o.state = State{
		SessionID:   opts.ID,
		Surface:     opts.Surface.Name,
		Status:      StatusIdle,
		Results:     []domain.UnifiedResult{},
		FacetGroups: []domain.FacetGroup{},
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.query = opts.Seed.Query
	if strings.TrimSpace(o.query) != "" {
		o.committed = o.query
		o.issueLocked()
	} else {
		o.refreshLocked()
	}
	return o
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.id }

// Surface returns the surface the session serves.
func (o *Orchestrator) Surface() Surface { return o.surface }

// ClientID returns the client owning the session's mode handle.
func (o *Orchestrator) ClientID() string { return o.mode.ClientID() }

// SetQuery updates the live query text. A blank query returns to idle at once
// and discards any pending or in-flight query. Anything else is debounced.
func (o *Orchestrator) SetQuery(q string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.lastActive = time.Now()
	o.query = q

	if strings.TrimSpace(q) == "" {
		o.debounce.Cancel()
		o.idleLocked()
		return nil
	}

	o.state.Status = StatusDebouncing
	o.publishLocked()
	o.debounce.Trigger(func() { o.commit(q) })
	return nil
}

func (o *Orchestrator) commit(q string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || q != o.query {
		return
	}
	o.committed = q
	o.issueLocked()
}

// ToggleFilter flips option in the facet named by key, which may be the index
// field or the URL parameter of the current mode.
func (o *Orchestrator) ToggleFilter(key, option string) error {
	if !o.surface.ExposesFacets {
		return fmt.Errorf("%w: filters on %s", ErrNotSupported, o.surface.Name)
	}
	option = strings.TrimSpace(option)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.lastActive = time.Now()
	o.syncModeLocked()

	field, err := service.ResolveFacetKey(o.activeMode, key)
	if err != nil {
		return err
	}
	if option == "" {
		return fmt.Errorf("%w: empty option for %s", domain.ErrInvalidFacet, field)
	}
	o.selections = o.selections.Toggle(field, option)
	o.page = 1
	o.requeryLocked()
	return nil
}

// ClearFilters empties every facet. Sort is left alone.
func (o *Orchestrator) ClearFilters() error {
	if !o.surface.ExposesFacets {
		return fmt.Errorf("%w: filters on %s", ErrNotSupported, o.surface.Name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.lastActive = time.Now()
	o.syncModeLocked()
	o.selections = o.selections.ClearAll()
	o.page = 1
	o.requeryLocked()
	return nil
}

// SetMode switches the client's search mode. Selections reset and the current
// query re-runs against the other index.
func (o *Orchestrator) SetMode(ctx context.Context, mode domain.Mode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}

	o.mode.Set(ctx, mode)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.lastActive = time.Now()
	if o.syncModeLocked() {
		o.requeryLocked()
	}
	return nil
}

// SetSort applies a sort value such as "price:desc" or "relevance".
func (o *Orchestrator) SetSort(value string) error {
	if !o.surface.ExposesFacets {
		return fmt.Errorf("%w: sort on %s", ErrNotSupported, o.surface.Name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.lastActive = time.Now()
	o.syncModeLocked()

	s, err := domain.ParseSort(o.activeMode, value)
	if err != nil {
		return err
	}
	o.sort = s
	o.page = 1
	o.requeryLocked()
	return nil
}

// SetPage moves to a 1-based result page.
func (o *Orchestrator) SetPage(page int) error {
	if !o.surface.ExposesFacets {
		return fmt.Errorf("%w: paging on %s", ErrNotSupported, o.surface.Name)
	}
	if page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.lastActive = time.Now()
	o.syncModeLocked()
	o.page = page
	o.requeryLocked()
	return nil
}

// Select returns the deep link of a result in the current list. Transient
// surfaces clear their query and return to idle.
func (o *Orchestrator) Select(resultID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", ErrClosed
	}
	o.lastActive = time.Now()

	var link string
	for _, r := range o.state.Results {
		if r.ID == resultID {
			link = r.URL
			break
		}
	}
	if link == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownResult, resultID)
	}

	if o.surface.Transient() {
		o.debounce.Cancel()
		o.query = ""
		o.idleLocked()
	}
	return link, nil
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe returns a channel that receives the current snapshot followed by
// every later one. A subscriber that falls behind loses its oldest pending
// snapshots, never the newest. The channel is closed by the returned cancel
// func or when the session closes.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
			o.lastActive = time.Now()
		})
	}
}

// IdleFor reports how long the session has gone without interaction. A
// session with live subscribers is never idle.
func (o *Orchestrator) IdleFor(now time.Time) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.subs) > 0 {
		return 0
	}
	return now.Sub(o.lastActive)
}

// Close stops the session. Pending queries are dropped, in-flight responses
// are ignored and subscriber channels are closed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.token++
	o.debounce.Stop()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	o.mu.Unlock()

	o.cancel()
}

// syncModeLocked adopts the shared mode if another surface changed it. Facet
// selections, sort and page belong to a mode and are reset. It reports
// whether the mode changed.
func (o *Orchestrator) syncModeLocked() bool {
	m := o.mode.Mode()
	if m == o.activeMode {
		return false
	}
	o.logger.DebugContext(o.ctx, "search mode changed",
		slog.String("from", o.activeMode.String()),
		slog.String("to", m.String()),
	)
	o.activeMode = m
	o.selections = service.Selections{}
	o.sort = domain.Sort{}
	o.page = 1
	o.state.FacetGroups = []domain.FacetGroup{}
	return true
}

// requeryLocked re-runs the current query right away. Text still waiting on
// the debounce is committed with it.
func (o *Orchestrator) requeryLocked() {
	if o.debounce.Cancel() {
		o.committed = o.query
	}
	if strings.TrimSpace(o.committed) == "" {
		o.publishLocked()
		return
	}
	o.issueLocked()
}

func (o *Orchestrator) issueLocked() {
	o.syncModeLocked()
	if strings.TrimSpace(o.committed) == "" {
		o.idleLocked()
		return
	}

	o.token++
	token := o.token
	req := service.SearchRequest{
		Mode:       o.activeMode,
		Query:      o.committed,
		Selections: o.selections.Clone(),
		Sort:       o.sort,
		Limit:      o.surface.Limit,
		Page:       o.page,
		Facets:     o.surface.ExposesFacets,
	}

	o.state.Status = StatusQuerying
	o.state.Loading = true
	o.state.Error = ""
	o.publishLocked()

	QueriesIssued.WithLabelValues(o.surface.Name, req.Mode.String()).Inc()
	go o.run(token, req)
}

func (o *Orchestrator) run(token uint64, req service.SearchRequest) {
	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	defer cancel()

	resp, err := o.search.Search(ctx, req)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if token != o.token {
		o.mu.Unlock()
		StaleResponses.WithLabelValues(o.surface.Name).Inc()
		o.logger.DebugContext(ctx, "discarded stale search response",
			slog.Uint64("token", token),
			slog.String("query", req.Query),
		)
		return
	}

	if err != nil {
		QueryFailures.WithLabelValues(o.surface.Name, req.Mode.String()).Inc()
		o.logger.WarnContext(ctx, "search failed",
			slog.String("mode", req.Mode.String()),
			slog.String("query", req.Query),
			slog.String("error", err.Error()),
		)
		o.state.Status = StatusFailed
		o.state.Results = []domain.UnifiedResult{}
		o.state.Total = 0
		o.state.Loading = false
		o.state.Error = domain.SearchFailedMessage
		o.settleLocked()
		o.mu.Unlock()
		return
	}

	o.state.Status = StatusSuccess
	o.state.Results = resp.Results
	o.state.FacetGroups = resp.FacetGroups
	o.state.Total = resp.Total
	o.state.Loading = false
	o.state.Error = ""
	o.settleLocked()
	o.mu.Unlock()

	o.search.ReportOutcome(o.ctx, o.surface.Name, o.mode.ClientID(), req, resp)
}

// settleLocked publishes a finished query, keeping the debouncing status when
// newer text is already waiting.
func (o *Orchestrator) settleLocked() {
	if o.debounce.Pending() {
		o.state.Status = StatusDebouncing
	}
	o.publishLocked()
}

func (o *Orchestrator) idleLocked() {
	o.token++
	o.committed = ""
	o.state.Status = StatusIdle
	o.state.Results = []domain.UnifiedResult{}
	o.state.FacetGroups = []domain.FacetGroup{}
	o.state.Total = 0
	o.state.Loading = false
	o.state.Error = ""
	o.publishLocked()
}

// refreshLocked copies the session inputs into the snapshot.
func (o *Orchestrator) refreshLocked() {
	s := &o.state
	s.Query = o.query
	s.Mode = o.activeMode
	s.ActiveFilters = o.selections.Clone()
	s.Sort = o.sort.String()
	s.Page = o.page
	s.Generation = o.token
	if s.FacetGroups == nil {
		s.FacetGroups = []domain.FacetGroup{}
	}
	for i := range s.FacetGroups {
		s.FacetGroups[i].Selected = o.selections.Selected(s.FacetGroups[i].Key)
	}
	if o.surface.ExposesFacets {
		s.URL = EncodeURL(o.query, o.activeMode)
	}
}

func (o *Orchestrator) publishLocked() {
	o.refreshLocked()
	for _, ch := range o.subs {
		offer(ch, o.state.clone())
	}
}

// offer delivers s without blocking, evicting the oldest queued snapshot when
// the channel is full. Callers hold the orchestrator lock, so they are the
// only sender.
func offer(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
