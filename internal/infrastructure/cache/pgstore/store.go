// Package pgstore backs the result cache with Postgres so instances share
// entries and survive restarts.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/caiomeira/extractd/internal/core/domain"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_cache (
	cache_key TEXT PRIMARY KEY,
	result JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	ttl_seconds BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_extraction_cache_created_at ON extraction_cache(created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT cache_key, result, created_at, ttl_seconds
FROM extraction_cache
WHERE cache_key = $1
`, key)

	var entry domain.CacheEntry
	var resultRaw []byte
	var ttlSeconds int64

	err := row.Scan(&entry.Key, &resultRaw, &entry.CreatedAt, &ttlSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}

	if err := json.Unmarshal(resultRaw, &entry.Result); err != nil {
		return nil, fmt.Errorf("unmarshal cache result: %w", err)
	}
	entry.TTL = time.Duration(ttlSeconds) * time.Second
	return &entry, nil
}

func (s *Store) Put(ctx context.Context, entry domain.CacheEntry) error {
	resultRaw, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("marshal cache result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO extraction_cache (cache_key, result, created_at, ttl_seconds)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_key) DO UPDATE
SET result = EXCLUDED.result, created_at = EXCLUDED.created_at, ttl_seconds = EXCLUDED.ttl_seconds
`, entry.Key, resultRaw, entry.CreatedAt, int64(entry.TTL/time.Second))
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// PruneExpired drops entries whose TTL elapsed before the given instant.
// Intended for a periodic maintenance call, not the read path.
func (s *Store) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM extraction_cache
WHERE ttl_seconds > 0 AND created_at + make_interval(secs => ttl_seconds) < $1
`, now)
	if err != nil {
		return 0, fmt.Errorf("prune cache entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return affected, nil
}
