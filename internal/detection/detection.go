package detection

import "github.com/ironsheep/overlay-eye/internal/geometry"

// Source identifies the backend that produced a Detection.
type Source string

const (
	SourceDetector  Source = "detector"
	SourceVisionLLM Source = "vision_llm"
	SourceOCR       Source = "ocr"
)

// Detection is one located UI element.
//
// Detections are values: stages build a new one rather than modifying an
// existing one, so a Detection handed to an event sink never changes later.
type Detection struct {
	Box    geometry.Box `json:"box"`
	Label  string       `json:"label"`
	Source Source       `json:"source"`

	// Confidence is in [0, 1] when the backend reported one, nil otherwise.
	Confidence *float64 `json:"confidence,omitempty"`
}

// New builds a Detection without a confidence.
func New(box geometry.Box, label string, source Source) Detection {
	return Detection{Box: box, Label: label, Source: source}
}

// NewScored builds a Detection with a confidence clamped to [0, 1].
func NewScored(box geometry.Box, label string, source Source, confidence float64) Detection {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	c := confidence
	return Detection{Box: box, Label: label, Source: source, Confidence: &c}
}

// WithLabel returns a copy of d carrying a different label.
func (d Detection) WithLabel(label string) Detection {
	out := d
	if d.Confidence != nil {
		c := *d.Confidence
		out.Confidence = &c
	}
	out.Label = label
	return out
}

// WithBox returns a copy of d with a different box.
func (d Detection) WithBox(box geometry.Box) Detection {
	out := d.WithLabel(d.Label)
	out.Box = box
	return out
}

// Score returns the confidence and whether one was reported.
func (d Detection) Score() (float64, bool) {
	if d.Confidence == nil {
		return 0, false
	}
	return *d.Confidence, true
}

// Equal reports whether two detections carry the same values.
func (d Detection) Equal(o Detection) bool {
	if d.Box != o.Box || d.Label != o.Label || d.Source != o.Source {
		return false
	}
	a, okA := d.Score()
	b, okB := o.Score()
	return okA == okB && a == b
}
