// Package imagehash computes perceptual hashes for listing images and scores
// visual similarity between records.
package imagehash

import (
	"bytes"
	"image"

	// image formats decoded from listing photo URLs
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	// gridWidth and gridHeight define the downsample grid. 9 columns give
	// 8 adjacent-pixel comparisons per row, 8 rows give a 64-bit hash.
	gridWidth  = 9
	gridHeight = 8

	// HashBits is the length of a difference hash in bits.
	HashBits = 64
)

// Grid is a gridHeight x gridWidth matrix of grayscale intensities.
type Grid [gridHeight][gridWidth]uint8

// Decoder turns raw image bytes into the fixed-size grayscale grid the hash
// is computed from. Abstracted so tests can feed synthetic grids without
// encoding real images.
type Decoder interface {
	Decode(data []byte) (Grid, error)
}

// StdDecoder decodes with the standard image codecs and downsamples with
// bilinear interpolation.
type StdDecoder struct{}

// NewStdDecoder creates the production decoder
func NewStdDecoder() *StdDecoder {
	return &StdDecoder{}
}

// Decode decodes, downsamples and grayscales the image.
func (d *StdDecoder) Decode(data []byte) (Grid, error) {
	var grid Grid

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return grid, errors.Wrap(err, "failed to decode image")
	}

	small := image.NewGray(image.Rect(0, 0, gridWidth, gridHeight))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	for y := 0; y < gridHeight; y++ {
		for x := 0; x < gridWidth; x++ {
			grid[y][x] = small.GrayAt(x, y).Y
		}
	}

	return grid, nil
}
