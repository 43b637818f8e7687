package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// Outline colours used by the evaluation artifacts.
const (
	GroundTruthColor = "#00c853"
	PredictionColor  = "#ff1744"
)

// Outline is one rectangle to draw on an annotated copy.
type Outline struct {
	Box   geometry.Box
	Color string // "#RRGGBB"; empty picks from the palette
	Label string
}

// Annotate returns a copy of img with every outline drawn at the given
// stroke thickness. Labels are written just above each box, or inside it
// when the box touches the top edge.
func Annotate(img image.Image, outlines []Outline, thickness int) *image.NRGBA {
	if thickness < 1 {
		thickness = 1
	}
	out := imaging.Clone(img)

	for i, o := range outlines {
		c := outlineColor(o.Color, i)
		drawRect(out, o.Box, thickness, c)
		if o.Label != "" {
			drawLabel(out, o.Box, o.Label, c)
		}
	}
	return out
}

// PaletteColor returns a distinct, deterministic colour for index i.
func PaletteColor(i int) color.Color {
	hue := math.Mod(float64(i)*137.508, 360)
	return colorful.Hcl(hue, 0.8, 0.6).Clamped()
}

// SavePNG writes img to path. The format follows the file extension.
func SavePNG(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func outlineColor(hex string, i int) color.Color {
	if hex != "" {
		if c, err := colorful.Hex(hex); err == nil {
			return c
		}
	}
	return PaletteColor(i)
}

func drawRect(dst *image.NRGBA, box geometry.Box, thickness int, c color.Color) {
	if box.Empty() {
		return
	}
	b := dst.Bounds()
	r := image.Rect(box.X, box.Y, box.Right(), box.Bottom())
	src := image.NewUniform(c)

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(b), src, image.Point{}, draw.Src)
	}
}

func drawLabel(dst *image.NRGBA, box geometry.Box, text string, c color.Color) {
	face := basicfont.Face7x13
	// Baseline sits a few pixels above the box; 13px glyph height.
	y := box.Y - 3
	if y < face.Height {
		y = box.Y + face.Height
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(box.X, y),
	}
	d.DrawString(text)
}
