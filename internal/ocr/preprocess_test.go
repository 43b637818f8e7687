package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

func TestPreprocess(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			src.Set(x, y, color.RGBA{200, 30, 30, 255})
		}
	}

	out, factor := Preprocess(src, 1)
	if factor != 1 {
		t.Errorf("factor = %v, want 1", factor)
	}
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 20 {
		t.Errorf("bounds = %v", out.Bounds())
	}
	r, g, b, _ := out.At(5, 5).RGBA()
	if r != g || g != b {
		t.Errorf("expected grayscale output, got (%d,%d,%d)", r, g, b)
	}

	big, factor := Preprocess(src, 2)
	if factor != 2 || big.Bounds().Dx() != 80 || big.Bounds().Dy() != 40 {
		t.Errorf("upscaled bounds = %v, factor %v", big.Bounds(), factor)
	}
}

func TestRescaleTokens(t *testing.T) {
	in := []Token{{Text: "Save", Box: geometry.Box{X: 21, Y: 41, W: 81, H: 33}, LineID: "1"}}

	out := RescaleTokens(in, 2, geometry.Size{W: 100, H: 100})
	if want := (geometry.Box{X: 10, Y: 20, W: 40, H: 16}); out[0].Box != want {
		t.Errorf("box = %v, want %v", out[0].Box, want)
	}
	if in[0].Box.X != 21 {
		t.Error("RescaleTokens must not modify its input")
	}

	// Without upscaling the boxes are still clamped to the image.
	edge := []Token{{Text: "Save", Box: geometry.Box{X: -5, Y: 3, W: 200, H: 10}, LineID: "1"}}
	for _, factor := range []float64{1, 0} {
		got := RescaleTokens(edge, factor, geometry.Size{W: 100, H: 100})
		if want := (geometry.Box{X: 0, Y: 3, W: 100, H: 10}); got[0].Box != want {
			t.Errorf("factor %v: box = %v, want %v", factor, got[0].Box, want)
		}
	}
	if edge[0].Box.X != -5 {
		t.Error("RescaleTokens must not modify its input")
	}
}

func TestResult_Snippet(t *testing.T) {
	r := Result{Text: "Save\n\n  Cancel\tHelp "}
	if got := r.Snippet(0); got != "Save Cancel Help" {
		t.Errorf("Snippet(0) = %q", got)
	}
	if got := r.Snippet(6); got != "Save C" {
		t.Errorf("Snippet(6) = %q", got)
	}
}
