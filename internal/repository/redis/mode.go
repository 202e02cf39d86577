package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/marketsearch/pkg/errors"
)

const keyPrefix = "search_mode:"

// ModeRepository implements repository.ModeRepository using Redis.
type ModeRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewModeRepository creates a new Redis-backed mode store. A zero ttl keeps
// values forever.
func NewModeRepository(client *redis.Client, ttl time.Duration) *ModeRepository {
	return &ModeRepository{
		client: client,
		ttl:    ttl,
	}
}

// GetMode returns the raw mode stored for the client.
func (r *ModeRepository) GetMode(ctx context.Context, clientID string) (string, error) {
	val, err := r.client.Get(ctx, keyPrefix+clientID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("search_mode", clientID)
		}
		return "", fmt.Errorf("redis get search mode: %w", err)
	}
	return val, nil
}

// SetMode stores the mode for the client.
func (r *ModeRepository) SetMode(ctx context.Context, clientID, mode string) error {
	if err := r.client.Set(ctx, keyPrefix+clientID, mode, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search mode: %w", err)
	}
	return nil
}
