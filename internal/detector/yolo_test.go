package detector

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

func TestLoadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	if err := os.WriteFile(path, []byte("button\n\n text field \ncheckbox\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := loadNames(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"button", "text field", "checkbox"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	os.WriteFile(empty, nil, 0o644)
	if _, err := loadNames(empty); err == nil {
		t.Error("empty names file should fail")
	}
}

func TestSelectClasses(t *testing.T) {
	names := []string{"button", "text field", "checkbox", "icon"}

	if got := selectClasses(names, "Find the search text box"); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("text query selected %v", got)
	}
	// "button" is a stop word, so nothing matches and every class is allowed.
	if got := selectClasses(names, "click the button"); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("generic query selected %v", got)
	}
}

func TestDecodeYOLO(t *testing.T) {
	names := []string{"button", "icon"}
	const anchors = 3
	// rows: cx, cy, w, h, score(button), score(icon); columns are anchors.
	data := []float32{
		100, 300, 500,
		100, 300, 500,
		40, 20, 10,
		20, 20, 10,
		0.9, 0.02, 0.3,
		0.1, 0.7, 0.4,
	}

	got := decodeYOLO(data, anchors, names, []int{0, 1}, 0.5, 0.5, 0.5)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Label != "button" || got[1].Label != "icon" {
		t.Errorf("labels = %q, %q", got[0].Label, got[1].Label)
	}
}

func TestDecodeYOLO_BoxesAndFiltering(t *testing.T) {
	names := []string{"button", "icon"}
	data := []float32{
		100, 300,
		100, 300,
		40, 20,
		20, 20,
		0.9, 0.01,
		0.1, 0.02,
	}

	got := decodeYOLO(data, 2, names, []int{0, 1}, 2, 1, 0.05)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	c := got[0]
	if c.Label != "button" || c.Score < 0.89 || c.Score > 0.91 {
		t.Errorf("candidate = %+v", c)
	}
	// cx=100 w=40 -> x 80..120, scaled by 2 -> 160..240; cy=100 h=20 -> 90..110.
	if want := (geometry.Box{X: 160, Y: 90, W: 80, H: 20}); c.Box != want {
		t.Errorf("box = %v, want %v", c.Box, want)
	}

	// Restricting to "icon" drops the button anchor.
	if got := decodeYOLO(data, 2, names, []int{1}, 1, 1, 0.05); len(got) != 1 || got[0].Label != "icon" {
		t.Errorf("icon-only decode = %+v", got)
	}

	if got := decodeYOLO(data[:5], 2, names, []int{0}, 1, 1, 0.05); got != nil {
		t.Error("short buffers must decode to nothing")
	}
}
