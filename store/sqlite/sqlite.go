// Package sqlite implements almanac.MappingStore and almanac.FactStore
// using pure-Go SQLite. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/almanac-ai/almanac"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements almanac.MappingStore and almanac.FactStore backed by a
// local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ almanac.MappingStore = (*Store)(nil)
var _ almanac.FactStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers — this is also what serializes
// per-key mapping updates.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS mapping (
			key TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			hash TEXT NOT NULL,
			synced_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, q := range tables {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	s.logger.Debug("sqlite: init done", "took", time.Since(start))
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the mapping entry for key, with found=false when absent.
func (s *Store) Get(ctx context.Context, key string) (almanac.MappingEntry, bool, error) {
	var e almanac.MappingEntry
	row := s.db.QueryRowContext(ctx,
		`SELECT key, document_id, hash, synced_at FROM mapping WHERE key = ?`, key)
	if err := row.Scan(&e.Key, &e.DocumentID, &e.Hash, &e.SyncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return almanac.MappingEntry{}, false, nil
		}
		return almanac.MappingEntry{}, false, fmt.Errorf("sqlite: get mapping: %w", err)
	}
	return e, true, nil
}

// Put upserts the mapping entry for entry.Key. Each Put is one statement on
// the single shared connection, so updates for different keys never corrupt
// one another.
func (s *Store) Put(ctx context.Context, entry almanac.MappingEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mapping (key, document_id, hash, synced_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET document_id = excluded.document_id,
		   hash = excluded.hash, synced_at = excluded.synced_at`,
		entry.Key, entry.DocumentID, entry.Hash, entry.SyncedAt)
	if err != nil {
		return fmt.Errorf("sqlite: put mapping: %w", err)
	}
	s.logger.Debug("sqlite: mapping put", "key", entry.Key, "doc_id", entry.DocumentID)
	return nil
}

// Delete removes the mapping entry for key. Deleting an absent key is a
// no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mapping WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete mapping: %w", err)
	}
	s.logger.Debug("sqlite: mapping deleted", "key", key)
	return nil
}

// All returns every mapping entry ordered by key.
func (s *Store) All(ctx context.Context) ([]almanac.MappingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, document_id, hash, synced_at FROM mapping ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list mapping: %w", err)
	}
	defer rows.Close()

	var entries []almanac.MappingEntry
	for rows.Next() {
		var e almanac.MappingEntry
		if err := rows.Scan(&e.Key, &e.DocumentID, &e.Hash, &e.SyncedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan mapping: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveFact appends one fact.
func (s *Store) SaveFact(ctx context.Context, fact almanac.Fact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (id, text, created_at) VALUES (?, ?, ?)`,
		fact.ID, fact.Text, fact.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: save fact: %w", err)
	}
	s.logger.Debug("sqlite: fact saved", "id", fact.ID)
	return nil
}

// ListFacts returns facts in insertion order. limit <= 0 returns all.
func (s *Store) ListFacts(ctx context.Context, limit int) ([]almanac.Fact, error) {
	q := `SELECT id, text, created_at FROM facts ORDER BY created_at, id`
	args := []any{}
	if limit > 0 {
		// Most recent N, still returned oldest-first.
		q = `SELECT id, text, created_at FROM (
			SELECT id, text, created_at FROM facts ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list facts: %w", err)
	}
	defer rows.Close()

	var facts []almanac.Fact
	for rows.Next() {
		var f almanac.Fact
		if err := rows.Scan(&f.ID, &f.Text, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
