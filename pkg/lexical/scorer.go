// Package lexical scores string and numeric proximity between two listings.
package lexical

import (
	"math"

	"github.com/listinglab/clover/pkg/normalize"
)

// Scorer provides string and numeric comparison algorithms
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Ratio calculates an edit-distance-based similarity between two strings.
// Returns a value between 0.0 (no similarity) and 1.0 (exact match).
// Empty input on either side scores 0.
func (s *Scorer) Ratio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// NumericProximity scores how close two numeric values are relative to their
// average: max(0, 1 - |a-b| / avg(a,b)). Either value missing scores 0.
func (s *Scorer) NumericProximity(a, b *float64) float64 {
	if a == nil || b == nil {
		return 0.0
	}
	avg := (*a + *b) / 2
	if avg == 0 {
		if *a == *b {
			return 1.0
		}
		return 0.0
	}
	return math.Max(0, 1.0-math.Abs(*a-*b)/avg)
}

// FieldWeights configures the composite lexical score. The defaults are a
// deployment policy, not a fixed law; they can be tuned per profile.
type FieldWeights struct {
	Title       float64
	Address     float64
	Description float64
	Rent        float64
	Size        float64
}

// DefaultFieldWeights weights address and title highest; listings for the
// same unit almost always share those even when descriptions are rewritten.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{
		Title:       0.25,
		Address:     0.30,
		Description: 0.20,
		Rent:        0.15,
		Size:        0.10,
	}
}

// FieldScores holds the per-field sub-scores behind a composite score.
type FieldScores struct {
	Title       float64
	Address     float64
	Description float64
	Rent        float64
	Size        float64
}

// Compare computes the composite lexical score for a pair of normalized
// listings along with the per-field detail.
func (s *Scorer) Compare(a, b normalize.NormalizedListing, weights FieldWeights) (float64, FieldScores) {
	scores := FieldScores{
		Title:       s.Ratio(a.Title, b.Title),
		Address:     s.Ratio(a.Address, b.Address),
		Description: s.Ratio(a.Description, b.Description),
		Rent:        s.NumericProximity(a.Rent, b.Rent),
		Size:        s.NumericProximity(a.Size, b.Size),
	}

	composite := weights.Title*scores.Title +
		weights.Address*scores.Address +
		weights.Description*scores.Description +
		weights.Rent*scores.Rent +
		weights.Size*scores.Size

	total := weights.Title + weights.Address + weights.Description + weights.Rent + weights.Size
	if total > 0 {
		composite /= total
	}

	return clamp01(composite), scores
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
