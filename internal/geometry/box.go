package geometry

import "fmt"

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Size is an image size in pixels. The zero Size means "unknown".
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.W > 0 && s.H > 0
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Area returns W*H, or 0 for an empty box.
func (b Box) Area() int {
	if b.Empty() {
		return 0
	}
	return b.W * b.H
}

// Right returns the exclusive right edge.
func (b Box) Right() int { return b.X + b.W }

// Bottom returns the exclusive bottom edge.
func (b Box) Bottom() int { return b.Y + b.H }

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X, b.Y, b.W, b.H)
}

// FromCorners builds a box from (x0,y0) inclusive and (x1,y1) exclusive
// corners. Inverted corners give a zero width or height.
func FromCorners(x0, y0, x1, y1 int) Box {
	return Box{X: x0, Y: y0, W: maxInt(0, x1-x0), H: maxInt(0, y1-y0)}
}

// IoU returns the intersection over union of two boxes.
//
// The result is 0 when either box is empty or the boxes do not overlap.
// Identical non-empty boxes score exactly 1. Otherwise a 1e-6 epsilon is
// added to the denominator.
func IoU(a, b Box) float64 {
	if a.Empty() || b.Empty() {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	interW := minInt(a.Right(), b.Right()) - maxInt(a.X, b.X)
	interH := minInt(a.Bottom(), b.Bottom()) - maxInt(a.Y, b.Y)
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	inter := interW * interH

	return float64(inter) / (float64(a.Area()+b.Area()-inter) + 1e-6)
}

// Union returns the smallest box spanning every non-empty input.
func Union(boxes ...Box) Box {
	var out Box
	first := true
	for _, b := range boxes {
		if b.Empty() {
			continue
		}
		if first {
			out = b
			first = false
			continue
		}
		x0 := minInt(out.X, b.X)
		y0 := minInt(out.Y, b.Y)
		x1 := maxInt(out.Right(), b.Right())
		y1 := maxInt(out.Bottom(), b.Bottom())
		out = FromCorners(x0, y0, x1, y1)
	}
	return out
}

// Clamp limits each of x, y, w, h to [0, width] and [0, height].
// An unknown size leaves the box unchanged apart from negative values.
func Clamp(b Box, size Size) Box {
	if !size.Valid() {
		return Box{X: maxInt(0, b.X), Y: maxInt(0, b.Y), W: maxInt(0, b.W), H: maxInt(0, b.H)}
	}
	return Box{
		X: clampInt(b.X, 0, size.W),
		Y: clampInt(b.Y, 0, size.H),
		W: clampInt(b.W, 0, size.W),
		H: clampInt(b.H, 0, size.H),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
