package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MigrationDB is the connection RunMigrations needs. *pgxpool.Pool and
// pgxmock pools satisfy it.
type MigrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// migrationLockKey serializes migration runs across processes.
const migrationLockKey int64 = 0x6d61726b6574

const (
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	lockMigrations   = `SELECT pg_advisory_xact_lock($1)`
	migrationApplied = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	recordMigration  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// RunMigrations applies every *.up.sql file at the root of fsys in name
// order, recording applied versions in schema_migrations. Each migration runs
// in its own transaction under an advisory lock, so a server and the seed
// tool starting together apply each version once. Connection errors are
// retried; SQL errors are returned immediately.
func RunMigrations(ctx context.Context, db MigrationDB, fsys fs.FS, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	return migrationRetry().Do(ctx, "run migrations", logger, func(ctx context.Context) error {
		if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
			return fmt.Errorf("create schema_migrations table: %w", err)
		}

		applied := 0
		for _, name := range names {
			ran, err := applyMigration(ctx, db, fsys, name)
			if err != nil {
				return err
			}
			if ran {
				applied++
				logger.InfoContext(ctx, "migration applied", slog.String("version", name))
			}
		}
		logger.InfoContext(ctx, "database schema up to date",
			slog.Int("applied", applied),
			slog.Int("known", len(names)),
		)
		return nil
	})
}

// applyMigration runs one migration unless it is already recorded and
// reports whether it ran.
func applyMigration(ctx context.Context, db MigrationDB, fsys fs.FS, name string) (bool, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", name, err)
	}
	rollback := func(err error) (bool, error) {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, rbErr)
		}
		return false, err
	}

	if _, err := tx.Exec(ctx, lockMigrations, migrationLockKey); err != nil {
		return rollback(fmt.Errorf("lock migrations: %w", err))
	}

	var exists bool
	if err := tx.QueryRow(ctx, migrationApplied, name).Scan(&exists); err != nil {
		return rollback(fmt.Errorf("check migration %s: %w", name, err))
	}
	if exists {
		return rollback(nil)
	}

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return rollback(fmt.Errorf("execute migration %s: %w", name, err))
	}
	if _, err := tx.Exec(ctx, recordMigration, name); err != nil {
		return rollback(fmt.Errorf("record migration %s: %w", name, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}
