package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listinglab/clover/pkg/normalize"
)

func TestRatio(t *testing.T) {
	s := NewScorer()

	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, s.Ratio("bright loft", "bright loft"))
	})

	t.Run("empty input scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Ratio("", "bright loft"))
		assert.Equal(t, 0.0, s.Ratio("bright loft", ""))
		assert.Equal(t, 0.0, s.Ratio("", ""))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, s.Ratio("sunny flat", "sunny apartment"), s.Ratio("sunny apartment", "sunny flat"))
	})

	t.Run("smaller edit distance never scores lower", func(t *testing.T) {
		base := "spacious 3 room apartment"
		closer := "spacious 3 room apartmant"
		farther := "small 1 room studio"
		assert.GreaterOrEqual(t, s.Ratio(base, closer), s.Ratio(base, farther))
	})

	t.Run("bounded", func(t *testing.T) {
		score := s.Ratio("abc", "xyz")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}

func TestLevenshteinDistance(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flat", "flat", 0},
		{"flat", "flats", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, s.LevenshteinDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestNumericProximity(t *testing.T) {
	s := NewScorer()
	f := func(v float64) *float64 { return &v }

	t.Run("equal values score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, s.NumericProximity(f(1200), f(1200)))
	})

	t.Run("missing value scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, s.NumericProximity(nil, f(1200)))
		assert.Equal(t, 0.0, s.NumericProximity(f(1200), nil))
	})

	t.Run("proximity formula", func(t *testing.T) {
		// |1000-1200| / 1100 = 0.1818...
		assert.InDelta(t, 0.8182, s.NumericProximity(f(1000), f(1200)), 0.001)
	})

	t.Run("floors at zero for far values", func(t *testing.T) {
		assert.Equal(t, 0.0, s.NumericProximity(f(10), f(10000)))
	})

	t.Run("both zero", func(t *testing.T) {
		assert.Equal(t, 1.0, s.NumericProximity(f(0), f(0)))
	})
}

func TestCompare(t *testing.T) {
	s := NewScorer()
	rent := 1200.0
	size := 85.0

	a := normalize.NormalizedListing{
		Title:       "bright 2 room flat",
		Address:     "hauptstr 5 10115 berlin",
		Description: "close to the park",
		Rent:        &rent,
		Size:        &size,
	}

	t.Run("identical listings score 1", func(t *testing.T) {
		score, fields := s.Compare(a, a, DefaultFieldWeights())
		assert.Equal(t, 1.0, score)
		assert.Equal(t, 1.0, fields.Title)
		assert.Equal(t, 1.0, fields.Rent)
	})

	t.Run("missing numerics drag the composite down", func(t *testing.T) {
		b := a
		b.Rent = nil
		b.Size = nil
		score, fields := s.Compare(a, b, DefaultFieldWeights())
		assert.Equal(t, 0.0, fields.Rent)
		assert.Equal(t, 0.0, fields.Size)
		assert.Less(t, score, 1.0)
		assert.Greater(t, score, 0.5)
	})

	t.Run("weights are normalized", func(t *testing.T) {
		// Same relative weights, different scale, same score.
		w1 := FieldWeights{Title: 1, Address: 1, Description: 1, Rent: 1, Size: 1}
		w2 := FieldWeights{Title: 5, Address: 5, Description: 5, Rent: 5, Size: 5}
		b := a
		b.Title = "sunny 2 room flat"
		s1, _ := s.Compare(a, b, w1)
		s2, _ := s.Compare(a, b, w2)
		assert.InDelta(t, s1, s2, 1e-9)
	})

	t.Run("zero weights score 0", func(t *testing.T) {
		score, _ := s.Compare(a, a, FieldWeights{})
		require.Equal(t, 0.0, score)
	})
}
