package detector

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/ocr"
)

// Input edge the ONNX model is exported with.
const onnxInputSize = 640

// loadNames reads one class name per line. Blank lines are skipped.
func loadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class names: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if n := strings.TrimSpace(sc.Text()); n != "" {
			names = append(names, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("class names file %s is empty", path)
	}
	return names, nil
}

// selectClasses returns the class indices whose name shares a word with the
// query keywords. A query that names no class selects every class.
func selectClasses(names []string, query string) []int {
	keywords := ocr.Keywords(query)
	want := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		want[k] = struct{}{}
	}

	var picked []int
	for i, name := range names {
		for _, w := range ocr.Keywords(name) {
			if _, ok := want[w]; ok {
				picked = append(picked, i)
				break
			}
		}
	}
	if len(picked) == 0 {
		picked = make([]int, len(names))
		for i := range names {
			picked[i] = i
		}
	}
	return picked
}

// decodeYOLO turns a [4+classes, anchors] row-major output into candidates.
// Rows 0-3 are centre x, centre y, width, height in model input pixels; the
// remaining rows are per-class scores. Only the best allowed class per
// anchor is kept, and anchors scoring below floor are dropped.
func decodeYOLO(data []float32, anchors int, names []string, allowed []int, scaleX, scaleY, floor float64) []Candidate {
	rows := 4 + len(names)
	if anchors <= 0 || len(data) < rows*anchors {
		return nil
	}

	at := func(row, i int) float64 { return float64(data[row*anchors+i]) }

	var cands []Candidate
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, 0.0
		for _, c := range allowed {
			if s := at(4+c, i); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || bestScore < floor {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		x0 := (cx - w/2) * scaleX
		y0 := (cy - h/2) * scaleY
		x1 := (cx + w/2) * scaleX
		y1 := (cy + h/2) * scaleY

		cands = append(cands, Candidate{
			Box:   geometry.FromCorners(int(x0), int(y0), int(x1), int(y1)),
			Label: names[bestClass],
			Score: bestScore,
		})
	}
	return cands
}
