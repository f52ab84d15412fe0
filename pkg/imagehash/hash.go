package imagehash

import "math/bits"

// DifferenceHash computes a 64-bit difference hash from a grayscale grid:
// one bit per adjacent pixel pair per row, set when the left pixel is
// brighter than its right neighbour.
func DifferenceHash(grid Grid) uint64 {
	var hash uint64
	for y := 0; y < gridHeight; y++ {
		for x := 0; x < gridWidth-1; x++ {
			hash <<= 1
			if grid[y][x] > grid[y][x+1] {
				hash |= 1
			}
		}
	}
	return hash
}

// HammingSimilarity returns 1 - hammingDistance/hashLength for two hashes.
func HammingSimilarity(a, b uint64) float64 {
	distance := bits.OnesCount64(a ^ b)
	return 1.0 - float64(distance)/float64(HashBits)
}

// BestPairSimilarity maximizes the Hamming similarity over the cross product
// of both records' hashes. Either side empty scores 0.
func BestPairSimilarity(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	best := 0.0
	for _, ha := range a {
		for _, hb := range b {
			if sim := HammingSimilarity(ha, hb); sim > best {
				best = sim
			}
		}
	}
	return best
}
