// Package memory implements the semantic memory shared across research runs.
// Evidence is content addressed: saving the same text twice updates one record.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"researcher/internal/domain"
	"researcher/internal/embedding"
	"researcher/internal/metrics"
	"researcher/internal/vectorstore"
)

// Options tunes a Store.
type Options struct {
	// MinScore drops hits scoring below it. Zero keeps every hit.
	MinScore float64
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// Store embeds evidence and keeps it in a vector storage.
type Store struct {
	embedder embedding.Embedder
	storage  vectorstore.Storage
	minScore float64
	metrics  *metrics.Recorder
	log      *zap.Logger

	mu    sync.Mutex
	ready bool
}

var _ domain.MemoryStore = (*Store)(nil)

func NewStore(e embedding.Embedder, s vectorstore.Storage, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		embedder: e,
		storage:  s,
		minScore: opts.MinScore,
		metrics:  opts.Metrics,
		log:      log.With(zap.String("module", "memory")),
	}
}

// RecordID derives the stable record id of a text.
func RecordID(text string) string {
	sum := md5.Sum([]byte(text))
	return "doc_" + hex.EncodeToString(sum[:])
}

// init sizes the storage from the first vector the embedder produced.
func (s *Store) init(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.storage.Init(ctx, dimension); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Save embeds and upserts every non-blank text, tagging it with sourceQuery.
func (s *Store) Save(ctx context.Context, texts []string, sourceQuery string) (err error) {
	defer func() { s.metrics.ObserveMemory("save", err) }()

	records := make([]domain.Record, 0, len(texts))
	vectors := make([][]float64, 0, len(texts))
	seen := make(map[string]int, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed evidence: %w", err)
		}
		rec := domain.Record{ID: RecordID(text), Text: text, SourceQuery: sourceQuery}
		if i, ok := seen[rec.ID]; ok {
			records[i], vectors[i] = rec, vec
			continue
		}
		seen[rec.ID] = len(records)
		records = append(records, rec)
		vectors = append(vectors, vec)
	}
	if len(records) == 0 {
		return nil
	}
	if err := s.init(ctx, len(vectors[0])); err != nil {
		return fmt.Errorf("init memory storage: %w", err)
	}
	if err := s.storage.Upsert(ctx, records, vectors); err != nil {
		return fmt.Errorf("save evidence: %w", err)
	}
	s.log.Debug("saved evidence", zap.Int("records", len(records)), zap.String("source_query", sourceQuery))
	return nil
}

// Search returns up to k stored texts closest to query, best first.
// An empty memory answers without embedding the query.
func (s *Store) Search(ctx context.Context, query string, k int) (out []string, err error) {
	defer func() { s.metrics.ObserveMemory("search", err) }()

	if k <= 0 {
		return []string{}, nil
	}
	count, err := s.storage.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count memory: %w", err)
	}
	if count == 0 {
		return []string{}, nil
	}
	if k > count {
		k = count
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		return []string{}, nil
	}
	if err := s.init(ctx, len(vec)); err != nil {
		return nil, fmt.Errorf("init memory storage: %w", err)
	}
	matches, err := s.storage.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}
	out = make([]string, 0, len(matches))
	for _, m := range matches {
		if s.minScore > 0 && m.Score < s.minScore {
			continue
		}
		out = append(out, m.Record.Text)
	}
	return out, nil
}

// Clear drops every stored record.
func (s *Store) Clear(ctx context.Context) (err error) {
	defer func() { s.metrics.ObserveMemory("clear", err) }()
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	s.log.Info("memory cleared")
	return nil
}

// Close releases the underlying storage.
func (s *Store) Close() error {
	return s.storage.Close()
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// OpenConfig controls how Open builds the store.
type OpenConfig struct {
	Enabled bool
	// Probe embeds a short text up front so a broken embedding backend
	// disables memory at startup instead of failing every call.
	Probe   bool
	Options Options
}

// Open builds the memory store and reports it as a capability. Any failure
// yields an unavailable capability carrying the cause; it is never fatal.
// The returned store is nil unless memory is available.
func Open(ctx context.Context, cfg OpenConfig,
	newEmbedder func() (embedding.Embedder, error),
	newStorage func() (vectorstore.Storage, error),
) (domain.MemoryCapability, *Store) {
	log := cfg.Options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	unavailable := func(reason error) (domain.MemoryCapability, *Store) {
		log.Warn("memory unavailable, memory strategies disabled", zap.Error(reason))
		return domain.MemoryUnavailable(reason), nil
	}
	if !cfg.Enabled {
		return unavailable(fmt.Errorf("%w: disabled by configuration", domain.ErrMemoryUnavailable))
	}
	e, err := newEmbedder()
	if err != nil {
		return unavailable(fmt.Errorf("%w: embedder: %v", domain.ErrMemoryUnavailable, err))
	}
	st, err := newStorage()
	if err != nil {
		return unavailable(fmt.Errorf("%w: storage: %v", domain.ErrMemoryUnavailable, err))
	}
	store := NewStore(e, st, cfg.Options)
	if cfg.Probe {
		if err := store.probe(ctx); err != nil {
			_ = st.Close()
			return unavailable(fmt.Errorf("%w: probe: %v", domain.ErrMemoryUnavailable, err))
		}
	}
	log.Info("memory ready", zap.String("embedder", e.Name()))
	return domain.MemoryAvailable(store), store
}

func (s *Store) probe(ctx context.Context) error {
	vec, err := s.embedder.Embed(ctx, "memory probe")
	if err != nil {
		return err
	}
	if len(vec) == 0 {
		return errors.New("embedder returned an empty vector")
	}
	return s.init(ctx, len(vec))
}
