// Package postgres implements almanac.MappingStore and almanac.FactStore
// using PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almanac-ai/almanac"
)

// Store implements almanac.MappingStore and almanac.FactStore backed by
// PostgreSQL. Per-key mapping updates are single upsert statements, so
// concurrent syncs of different keys never interfere.
type Store struct {
	pool *pgxpool.Pool
}

var _ almanac.MappingStore = (*Store)(nil)
var _ almanac.FactStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates all required tables. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS mapping (
			key TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			hash TEXT NOT NULL,
			synced_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, q := range tables {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// Get returns the mapping entry for key, with found=false when absent.
func (s *Store) Get(ctx context.Context, key string) (almanac.MappingEntry, bool, error) {
	var e almanac.MappingEntry
	err := s.pool.QueryRow(ctx,
		`SELECT key, document_id, hash, synced_at FROM mapping WHERE key = $1`, key).
		Scan(&e.Key, &e.DocumentID, &e.Hash, &e.SyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return almanac.MappingEntry{}, false, nil
		}
		return almanac.MappingEntry{}, false, fmt.Errorf("postgres: get mapping: %w", err)
	}
	return e, true, nil
}

// Put upserts the mapping entry for entry.Key.
func (s *Store) Put(ctx context.Context, entry almanac.MappingEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mapping (key, document_id, hash, synced_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET document_id = EXCLUDED.document_id,
		   hash = EXCLUDED.hash, synced_at = EXCLUDED.synced_at`,
		entry.Key, entry.DocumentID, entry.Hash, entry.SyncedAt)
	if err != nil {
		return fmt.Errorf("postgres: put mapping: %w", err)
	}
	return nil
}

// Delete removes the mapping entry for key. Absent keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mapping WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: delete mapping: %w", err)
	}
	return nil
}

// All returns every mapping entry ordered by key.
func (s *Store) All(ctx context.Context) ([]almanac.MappingEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, document_id, hash, synced_at FROM mapping ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list mapping: %w", err)
	}
	defer rows.Close()

	var entries []almanac.MappingEntry
	for rows.Next() {
		var e almanac.MappingEntry
		if err := rows.Scan(&e.Key, &e.DocumentID, &e.Hash, &e.SyncedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan mapping: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveFact appends one fact.
func (s *Store) SaveFact(ctx context.Context, fact almanac.Fact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO facts (id, text, created_at) VALUES ($1, $2, $3)`,
		fact.ID, fact.Text, fact.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save fact: %w", err)
	}
	return nil
}

// ListFacts returns facts in insertion order. limit <= 0 returns all.
func (s *Store) ListFacts(ctx context.Context, limit int) ([]almanac.Fact, error) {
	q := `SELECT id, text, created_at FROM facts ORDER BY created_at, id`
	args := []any{}
	if limit > 0 {
		q = `SELECT id, text, created_at FROM (
			SELECT id, text, created_at FROM facts ORDER BY created_at DESC, id DESC LIMIT $1
		) sub ORDER BY created_at, id`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list facts: %w", err)
	}
	defer rows.Close()

	var facts []almanac.Fact
	for rows.Next() {
		var f almanac.Fact
		if err := rows.Scan(&f.ID, &f.Text, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
