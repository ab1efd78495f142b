package vectorstore

import (
	"context"

	"researcher/internal/domain"
)

// Storage persists record vectors and supports similarity search.
// Upsert replaces any record with the same ID.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []domain.Record, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.Match, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}
