package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/marketsearch/pkg/database"
)

const (
	titlesQuery = `SELECT id, title FROM sources WHERE id = ANY($1)`

	upsertQuery = `INSERT INTO sources (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = NOW()`
)

// SourceRepository implements repository.SourceRepository using PostgreSQL.
type SourceRepository struct {
	pool database.DBTX
}

// NewSourceRepository creates a new PostgreSQL-backed source repository.
func NewSourceRepository(pool database.DBTX) *SourceRepository {
	return &SourceRepository{pool: pool}
}

// Titles looks up every id in one round trip.
func (r *SourceRepository) Titles(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	rows, err := r.pool.Query(database.WithOperation(ctx, "LookupSources"), titlesQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("query source titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		titles[id] = title
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}

	return titles, nil
}

// Upsert creates or renames a source.
func (r *SourceRepository) Upsert(ctx context.Context, id, title string) error {
	if _, err := r.pool.Exec(database.WithOperation(ctx, "UpsertSource"), upsertQuery, id, title); err != nil {
		return fmt.Errorf("upsert source %s: %w", id, err)
	}
	return nil
}
