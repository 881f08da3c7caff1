package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultCompressionLevel is the zlib-style effort level (0-9) used for PNG output
const DefaultCompressionLevel = 7

// pngCompressionLevel maps a zlib-style 0-9 level onto the four levels the
// Go PNG encoder supports.
func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// EncodePNG encodes img as PNG with the given 0-9 compression level.
// Paletted images are written as indexed PNGs.
func EncodePNG(img image.Image, level int) ([]byte, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("compression level must be between 0 and 9, got %d", level)
	}

	var buf bytes.Buffer
	bb := img.Bounds()
	// rough heuristic: 1 byte per pixel
	buf.Grow(bb.Dx() * bb.Dy())
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(pngCompressionLevel(level))); err != nil {
		return nil, fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return buf.Bytes(), nil
}
