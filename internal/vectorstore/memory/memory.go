package memory

import (
	"context"
	"errors"
	"sync"

	"researcher/internal/domain"
	"researcher/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	index     map[string]int
	vectors   [][]float64
	records   []domain.Record
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return errors.New("vector dimension mismatch")
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []domain.Record, vectors [][]float64) error {
	if len(records) != len(vectors) {
		return errors.New("records and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i, r := range records {
		if j, ok := s.index[r.ID]; ok {
			s.records[j] = r
			s.vectors[j] = vectors[i]
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Match, len(s.records))
	for i := range s.records {
		matches[i] = domain.Match{Record: s.records[i], Score: vectorstore.Cosine(s.vectors[i], vector)}
	}
	return vectorstore.TopK(matches, topK), nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[string]int)
	s.vectors = nil
	s.records = nil
	return nil
}

func (s *Storage) Close() error { return nil }
