package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/repository"
	apperrors "github.com/utafrali/marketsearch/pkg/errors"
)

// ModeHandle is the shared search mode of one client. Every surface of the
// client reads and writes the same handle.
type ModeHandle struct {
	mu       sync.RWMutex
	mode     domain.Mode
	clientID string
	store    *Preferences
}

// Mode returns the current mode.
func (h *ModeHandle) Mode() domain.Mode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mode
}

// ClientID returns the owning client, empty for anonymous handles.
func (h *ModeHandle) ClientID() string {
	return h.clientID
}

// Set changes the mode and persists it. A persistence failure is logged and
// the in-memory value still changes.
func (h *ModeHandle) Set(ctx context.Context, mode domain.Mode) {
	h.mu.Lock()
	if h.mode == mode {
		h.mu.Unlock()
		return
	}
	h.mode = mode
	h.mu.Unlock()

	if h.store != nil && h.clientID != "" {
		h.store.persist(ctx, h.clientID, mode)
	}
}

// NewModeHandle returns an unpersisted handle starting at mode.
func NewModeHandle(mode domain.Mode) *ModeHandle {
	if !mode.IsValid() {
		mode = domain.DefaultMode
	}
	return &ModeHandle{mode: mode}
}

type prefEntry struct {
	handle *ModeHandle
	refs   int
}

// Preferences hands out one ModeHandle per client. The stored mode is read
// once, when the client's first handle is acquired.
type Preferences struct {
	repo   repository.ModeRepository
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*prefEntry
}

// NewPreferences creates a preference registry. A nil repo keeps modes in
// memory only.
func NewPreferences(repo repository.ModeRepository, logger *slog.Logger) *Preferences {
	return &Preferences{
		repo:    repo,
		logger:  logger,
		handles: make(map[string]*prefEntry),
	}
}

// Acquire returns the client's handle, loading the stored mode on first use.
// Absent or corrupt stored values fall back to domain.DefaultMode. An empty
// clientID yields a private, unpersisted handle.
func (p *Preferences) Acquire(ctx context.Context, clientID string) *ModeHandle {
	if clientID == "" {
		return NewModeHandle(domain.DefaultMode)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.handles[clientID]; ok {
		e.refs++
		return e.handle
	}

	h := &ModeHandle{mode: p.load(ctx, clientID), clientID: clientID, store: p}
	p.handles[clientID] = &prefEntry{handle: h, refs: 1}
	return h
}

// Release drops one reference to the client's handle and forgets it when no
// surface holds it any more.
func (p *Preferences) Release(clientID string) {
	if clientID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.handles[clientID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(p.handles, clientID)
	}
}

func (p *Preferences) load(ctx context.Context, clientID string) domain.Mode {
	if p.repo == nil {
		return domain.DefaultMode
	}
	raw, err := p.repo.GetMode(ctx, clientID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			p.logger.WarnContext(ctx, "failed to load search mode, using default",
				slog.String("client_id", clientID),
				slog.String("error", err.Error()),
			)
		}
		return domain.DefaultMode
	}
	mode, err := domain.ParseMode(raw)
	if err != nil {
		p.logger.WarnContext(ctx, "stored search mode is corrupt, using default",
			slog.String("client_id", clientID),
			slog.String("value", raw),
		)
		return domain.DefaultMode
	}
	return mode
}

func (p *Preferences) persist(ctx context.Context, clientID string, mode domain.Mode) {
	if p.repo == nil {
		return
	}
	if err := p.repo.SetMode(ctx, clientID, mode.String()); err != nil {
		p.logger.WarnContext(ctx, "failed to persist search mode",
			slog.String("client_id", clientID),
			slog.String("mode", mode.String()),
			slog.String("error", err.Error()),
		)
	}
}
