// Package sqlite stores memory vectors in a local SQLite database so that
// evidence survives restarts without an external vector service.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"researcher/internal/domain"
	"researcher/internal/vectorstore"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config locates the database. Records are partitioned by Collection.
type Config struct {
	DataDir    string
	Collection string
}

// Storage is a brute-force cosine vector store persisted in SQLite.
type Storage struct {
	db         *sql.DB
	collection string

	mu        sync.RWMutex
	dimension int
}

var _ vectorstore.Storage = (*Storage)(nil)

// NewStorage creates the data directory if needed, opens SQLite in WAL mode
// and runs migrations.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = "memory_db"
	}
	if cfg.Collection == "" {
		cfg.Collection = "research_assistant"
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}
	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, "memory.db"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}
	s := &Storage{db: db, collection: cfg.Collection}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

func (s *Storage) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_records (
			collection   TEXT    NOT NULL,
			id           TEXT    NOT NULL,
			text         TEXT    NOT NULL,
			source_query TEXT    NOT NULL DEFAULT '',
			dimension    INTEGER NOT NULL,
			embedding    BLOB    NOT NULL,
			updated_at   TEXT    NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (collection, id)
		);
	`)
	return err
}

// Init fixes the vector width, rejecting a width that differs from what the
// collection already holds.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	var stored int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM memory_records WHERE collection = ? LIMIT 1`, s.collection).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("sqlite: read dimension: %w", err)
	case stored != dimension:
		return fmt.Errorf("sqlite: collection %q holds %d-dim vectors, embedder produces %d", s.collection, stored, dimension)
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record, vectors [][]float64) error {
	if len(records) != len(vectors) {
		return errors.New("records and vectors length mismatch")
	}
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	for _, v := range vectors {
		if len(v) != dim {
			return errors.New("vector dimension mismatch")
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memory_records (collection, id, text, source_query, dimension, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text         = excluded.text,
			source_query = excluded.source_query,
			dimension    = excluded.dimension,
			embedding    = excluded.embedding,
			updated_at   = datetime('now')`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()
	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, s.collection, r.ID, r.Text, r.SourceQuery, len(vectors[i]), encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("sqlite: upsert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source_query, embedding FROM memory_records WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	defer rows.Close()
	var matches []domain.Match
	for rows.Next() {
		var (
			r    domain.Record
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &r.SourceQuery, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		matches = append(matches, domain.Match{Record: r, Score: vectorstore.Cosine(decodeVector(blob), vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	return vectorstore.TopK(matches, topK), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_records WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("sqlite: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
