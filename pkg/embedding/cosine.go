package embedding

import (
	"gonum.org/v1/gonum/floats"

	"github.com/listinglab/clover/pkg/models"
)

// Cosine returns the cosine similarity of two vectors, clamped to [0,1].
// An empty vector, a dimension mismatch, or a zero-magnitude vector scores 0.
func Cosine(a, b models.Vector) float64 {
	if a.IsZero() || b.IsZero() || len(a) != len(b) {
		return 0.0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := floats.Dot(a, b) / (normA * normB)
	if sim < 0 {
		return 0.0
	}
	if sim > 1 {
		return 1.0
	}
	return sim
}
