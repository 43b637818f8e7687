package detector

import (
	"context"
	"image"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// Kind names a backend implementation.
type Kind string

const (
	KindONNX     Kind = "onnx"
	KindPipeline Kind = "pipeline"
)

// Candidate is one raw detection from a backend.
type Candidate struct {
	Box   geometry.Box `json:"box"`
	Label string       `json:"label"`
	Score float64      `json:"score"`
}

// Backend runs a detection model. Implementations must be safe for
// concurrent use once constructed.
type Backend interface {
	Detect(ctx context.Context, img image.Image, query string) ([]Candidate, error)
	Close() error
}

// Best returns the highest scoring candidate. The first wins ties.
func Best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}
