package vectorstore

import (
	"math"
	"sort"

	"researcher/internal/domain"
)

// Cosine returns the cosine similarity of a and b over their common length.
// Zero vectors score 0.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK sorts matches by descending score, keeping input order for ties,
// and returns at most k of them. k <= 0 defaults to 5.
func TopK(matches []domain.Match, k int) []domain.Match {
	if k <= 0 {
		k = 5
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}
