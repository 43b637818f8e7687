package ocr

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
)

// Contrast boost applied after grayscale conversion. UI text is usually
// dark-on-light or light-on-dark with anti-aliased edges.
const defaultContrast = 0.3

// Preprocess prepares a capture for recognition and returns the factor the
// result was scaled by. Token boxes found on the returned image must be
// mapped back with RescaleTokens.
func Preprocess(img image.Image, upscale float64) (image.Image, float64) {
	gray := effect.Grayscale(img)
	out := image.Image(adjust.Contrast(gray, defaultContrast))

	if upscale <= 1 {
		return out, 1
	}
	return imaging.Upscale(out, upscale), upscale
}

// RescaleTokens divides every token box by factor, flooring each component,
// and clamps the result to size. A factor <= 0 is treated as 1. The input
// slice is never modified.
func RescaleTokens(tokens []Token, factor float64, size geometry.Size) []Token {
	if factor <= 0 {
		factor = 1
	}
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		b := tok.Box
		tok.Box = geometry.Clamp(geometry.Box{
			X: int(math.Floor(float64(b.X) / factor)),
			Y: int(math.Floor(float64(b.Y) / factor)),
			W: int(math.Floor(float64(b.W) / factor)),
			H: int(math.Floor(float64(b.H) / factor)),
		}, size)
		out[i] = tok
	}
	return out
}
