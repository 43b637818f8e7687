package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// LabelsFile is the name of the label file inside a dataset directory.
const LabelsFile = "labels.json"

// Label is the ground truth for one screenshot.
type Label struct {
	Task string `json:"task"`
	BBox []int  `json:"bbox"`
}

// Box returns the ground truth box.
func (l Label) Box() geometry.Box {
	return geometry.Box{X: l.BBox[0], Y: l.BBox[1], W: l.BBox[2], H: l.BBox[3]}
}

// Dataset is a loaded labels.json and the directory it came from.
type Dataset struct {
	Dir    string
	Labels map[string]Label
}

// LoadDataset reads dir/labels.json. Every label must carry a four element
// bbox.
func LoadDataset(dir string) (*Dataset, error) {
	data, err := os.ReadFile(filepath.Join(dir, LabelsFile))
	if err != nil {
		return nil, fmt.Errorf("no %s in %s: %w", LabelsFile, dir, err)
	}

	var labels map[string]Label
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", LabelsFile, err)
	}
	for name, l := range labels {
		if len(l.BBox) != 4 {
			return nil, fmt.Errorf("label %q: bbox must have 4 values, got %d", name, len(l.BBox))
		}
	}
	return &Dataset{Dir: dir, Labels: labels}, nil
}

// Files returns the labelled file names in lexical order.
func (d *Dataset) Files() []string {
	names := make([]string, 0, len(d.Labels))
	for name := range d.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the on-disk path of a labelled file.
func (d *Dataset) Path(name string) string {
	return filepath.Join(d.Dir, name)
}
