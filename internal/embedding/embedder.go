package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Dimension may be zero until the first vector has been produced.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}
