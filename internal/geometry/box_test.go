package geometry

import (
	"math"
	"testing"
)

func TestIoU_Identity(t *testing.T) {
	boxes := []Box{
		{0, 0, 10, 10},
		{5, 7, 1, 1},
		{100, 200, 300, 40},
	}
	for _, b := range boxes {
		if got := IoU(b, b); got != 1.0 {
			t.Errorf("IoU(%s, %s) = %v, want 1.0", b, b, got)
		}
	}
}

func TestIoU_Disjoint(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
	}{
		{"side by side", Box{0, 0, 10, 10}, Box{20, 0, 10, 10}},
		{"touching edges", Box{0, 0, 10, 10}, Box{10, 0, 10, 10}},
		{"stacked", Box{0, 0, 10, 10}, Box{0, 30, 10, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); got != 0.0 {
				t.Errorf("IoU = %v, want exactly 0", got)
			}
		})
	}
}

func TestIoU_Empty(t *testing.T) {
	if got := IoU(Box{}, Box{0, 0, 10, 10}); got != 0.0 {
		t.Errorf("IoU with empty box = %v, want 0", got)
	}
	if got := IoU(Box{}, Box{}); got != 0.0 {
		t.Errorf("IoU of two empty boxes = %v, want 0", got)
	}
	if got := IoU(Box{5, 5, 0, 10}, Box{5, 5, 0, 10}); got != 0.0 {
		t.Errorf("IoU of degenerate boxes = %v, want 0", got)
	}
}

func TestIoU_Symmetric(t *testing.T) {
	boxes := []Box{
		{0, 0, 10, 10},
		{5, 5, 10, 10},
		{2, 8, 30, 4},
		{0, 0, 1, 1},
		{9, 9, 100, 100},
		{},
	}
	for _, a := range boxes {
		for _, b := range boxes {
			if IoU(a, b) != IoU(b, a) {
				t.Errorf("IoU not symmetric for %s, %s: %v vs %v", a, b, IoU(a, b), IoU(b, a))
			}
		}
	}
}

func TestIoU_PartialOverlap(t *testing.T) {
	// 5x5 overlap, union 100+100-25
	got := IoU(Box{0, 0, 10, 10}, Box{5, 5, 10, 10})
	want := 25.0 / 175.0
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("IoU = %v, want %v", got, want)
	}
}

func TestUnion(t *testing.T) {
	got := Union(Box{10, 10, 5, 5}, Box{}, Box{0, 12, 4, 20})
	want := Box{0, 10, 15, 22}
	if got != want {
		t.Errorf("Union = %s, want %s", got, want)
	}
	if u := Union(); u != (Box{}) {
		t.Errorf("Union() = %s, want empty", u)
	}
}

func TestClamp(t *testing.T) {
	size := Size{W: 100, H: 50}
	tests := []struct {
		in, want Box
	}{
		{Box{-5, 10, 20, 20}, Box{0, 10, 20, 20}},
		{Box{150, 60, 500, 500}, Box{100, 50, 100, 50}},
		{Box{10, 10, 10, 10}, Box{10, 10, 10, 10}},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in, size); got != tt.want {
			t.Errorf("Clamp(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFromCorners(t *testing.T) {
	if got := FromCorners(10, 20, 30, 60); got != (Box{10, 20, 20, 40}) {
		t.Errorf("FromCorners = %s", got)
	}
	if got := FromCorners(30, 20, 10, 10); got.W != 0 || got.H != 0 {
		t.Errorf("inverted corners should give zero size, got %s", got)
	}
}
