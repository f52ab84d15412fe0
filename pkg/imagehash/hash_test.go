package imagehash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func gradientGrid() Grid {
	var grid Grid
	for y := 0; y < gridHeight; y++ {
		for x := 0; x < gridWidth; x++ {
			grid[y][x] = uint8(x * 28)
		}
	}
	return grid
}

func TestDifferenceHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		grid := gradientGrid()
		assert.Equal(t, DifferenceHash(grid), DifferenceHash(grid))
	})

	t.Run("uniform grid hashes to zero", func(t *testing.T) {
		var flat Grid
		assert.Equal(t, uint64(0), DifferenceHash(flat))
	})

	t.Run("decreasing gradient sets all bits", func(t *testing.T) {
		var grid Grid
		for y := 0; y < gridHeight; y++ {
			for x := 0; x < gridWidth; x++ {
				grid[y][x] = uint8(255 - x*28)
			}
		}
		assert.Equal(t, ^uint64(0), DifferenceHash(grid))
	})
}

func TestHammingSimilarity(t *testing.T) {
	t.Run("identical hashes score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, HammingSimilarity(0xDEADBEEF, 0xDEADBEEF))
	})

	t.Run("fully inverted hashes score 0", func(t *testing.T) {
		h := uint64(0x0F0F0F0F0F0F0F0F)
		assert.Equal(t, 0.0, HammingSimilarity(h, ^h))
	})

	t.Run("single bit flip", func(t *testing.T) {
		assert.InDelta(t, 1.0-1.0/64.0, HammingSimilarity(0, 1), 1e-9)
	})
}

func TestBestPairSimilarity(t *testing.T) {
	t.Run("empty side scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, BestPairSimilarity(nil, []uint64{1}))
		assert.Equal(t, 0.0, BestPairSimilarity([]uint64{1}, nil))
	})

	t.Run("takes maximum over cross product", func(t *testing.T) {
		a := []uint64{0x00, 0xFF}
		b := []uint64{^uint64(0), 0xFF}
		// 0xFF appears on both sides, so the best pair is identical
		assert.Equal(t, 1.0, BestPairSimilarity(a, b))
	})
}
