package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketsearch/internal/service"
)

// DefaultIdleTTL is how long an unused session survives.
const DefaultIdleTTL = 30 * time.Minute

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("search session not found")

// CreateRequest describes a new session.
type CreateRequest struct {
	Surface  string
	ClientID string
	// Params carries q, mode and the facet parameters of the landing URL.
	Params url.Values
}

// Registry owns the open sessions of this process.
type Registry struct {
	search  Searcher
	prefs   *service.Preferences
	cfg     Config
	idleTTL time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

// NewRegistry creates a session registry. A non-positive idleTTL falls back
// to DefaultIdleTTL.
func NewRegistry(search Searcher, prefs *service.Preferences, cfg Config, idleTTL time.Duration, logger *slog.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if prefs == nil {
		prefs = service.NewPreferences(nil, logger)
	}
	return &Registry{
		search:   search,
		prefs:    prefs,
		cfg:      cfg,
		idleTTL:  idleTTL,
		logger:   logger,
		sessions: make(map[string]*Orchestrator),
	}
}

// Create opens a session on the requested surface. The client's shared mode
// handle is acquired here and released when the session closes.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Orchestrator, error) {
	surface, err := ParseSurface(req.Surface)
	if err != nil {
		return nil, err
	}

	handle := r.prefs.Acquire(ctx, req.ClientID)
	seed := SeedFromParams(req.Params, handle.Mode(), surface.ExposesFacets)

	o := New(Options{
		ID:      uuid.NewString(),
		Surface: surface,
		Seed:    seed,
		Config:  r.cfg,
	}, r.search, handle, r.logger)

	r.mu.Lock()
	r.sessions[o.ID()] = o
	r.mu.Unlock()
	ActiveSessions.WithLabelValues(surface.Name).Inc()

	r.logger.InfoContext(ctx, "search session created",
		slog.String("session_id", o.ID()),
		slog.String("surface", surface.Name),
		slog.String("mode", handle.Mode().String()),
	)
	return o, nil
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Orchestrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return o, nil
}

// Close closes and forgets a session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	o, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.closeSession(o)
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many it
// closed.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*Orchestrator
	r.mu.Lock()
	for id, o := range r.sessions {
		if o.IdleFor(now) > r.idleTTL {
			expired = append(expired, o)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, o := range expired {
		r.closeSession(o)
	}
	if len(expired) > 0 {
		r.logger.Info("expired idle search sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Orchestrator)
	r.mu.Unlock()

	for _, o := range all {
		r.closeSession(o)
	}
}

func (r *Registry) closeSession(o *Orchestrator) {
	o.Close()
	r.prefs.Release(o.ClientID())
	ActiveSessions.WithLabelValues(o.Surface().Name).Dec()
}
