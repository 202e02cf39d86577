package repository

import (
	"context"
)

// SourceRepository reads the display titles of marketplace sources.
type SourceRepository interface {
	// Titles returns the titles of the given source ids in a single lookup.
	// Ids with no row are absent from the returned map.
	Titles(ctx context.Context, ids []string) (map[string]string, error)
}

// ModeRepository persists the last search mode chosen by a client.
type ModeRepository interface {
	// GetMode returns the stored raw mode value. A missing value yields an
	// apperrors.NotFound error.
	GetMode(ctx context.Context, clientID string) (string, error)

	// SetMode stores the mode value for the client.
	SetMode(ctx context.Context, clientID, mode string) error
}
