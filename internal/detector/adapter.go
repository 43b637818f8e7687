package detector

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/logger"
)

// LabelPrefix marks detections produced by the object detector.
const LabelPrefix = "det:"

// DefaultMinScore is the lowest score accepted from a backend.
const DefaultMinScore = 0.2

// Options configures an Adapter.
type Options struct {
	Enabled     bool
	PreferONNX  bool
	Model       string // model identifier sent to the pipeline service
	ONNXPath    string
	NamesPath   string
	PipelineURL string
	Token       string
	MinScore    float64 // zero selects DefaultMinScore
	Timeout     time.Duration
}

// Adapter runs the configured backends in order and returns the best
// detection above the minimum score.
type Adapter struct {
	opts      Options
	cache     *HandleCache
	log       *logrus.Logger
	factories map[Kind]Factory
}

// NewAdapter creates an adapter. A nil cache gets a private one.
func NewAdapter(opts Options, cache *HandleCache, log *logrus.Logger) *Adapter {
	if cache == nil {
		cache = NewHandleCache()
	}
	if log == nil {
		log = logger.Discard()
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	a := &Adapter{opts: opts, cache: cache, log: log}
	a.factories = map[Kind]Factory{
		KindONNX: func(Key) (Backend, error) {
			return newONNXBackend(opts.ONNXPath, opts.NamesPath)
		},
		KindPipeline: func(k Key) (Backend, error) {
			return newPipelineBackend(opts.PipelineURL, opts.Model, k.Token, opts.Timeout)
		},
	}
	return a
}

// WithFactory replaces the constructor for one backend kind.
func (a *Adapter) WithFactory(kind Kind, f Factory) *Adapter {
	a.factories[kind] = f
	return a
}

// Cache returns the handle cache backing the adapter.
func (a *Adapter) Cache() *HandleCache { return a.cache }

// Keys returns the cache keys tried for a request, in order.
func (a *Adapter) Keys() []Key {
	var keys []Key
	if a.opts.PreferONNX {
		model := a.opts.Model
		if a.opts.ONNXPath != "" {
			model = a.opts.ONNXPath
		}
		if a.opts.NamesPath != "" {
			model += "#" + a.opts.NamesPath
		}
		keys = append(keys, Key{Kind: KindONNX, Model: model, Token: a.opts.Token})
	}
	keys = append(keys, Key{Kind: KindPipeline, Model: a.opts.Model + "@" + a.opts.PipelineURL, Token: a.opts.Token})
	return keys
}

// Detect returns the best-scoring detection for task.
//
// Parameters:
//   - ctx: Bounds the inference call; the adapter timeout is applied on top.
//   - img: The screenshot to search. Boxes come back in its pixel space.
//   - task: Free-text description of the element, used as the detector query.
//
// Returns:
//   - detection.Detection: The best candidate, clamped to the image and
//     labeled with LabelPrefix plus the backend label.
//   - error: Non-nil when no detection was produced.
//
// Backends are tried in Keys order. The first backend that runs decides the
// outcome; later backends are only consulted when earlier ones cannot run.
//
// # Errors
//
//   - BackendUnavailable if the adapter is disabled or no backend could be
//     built or run. The last backend error is wrapped.
//   - NoMatch if a backend ran but returned no candidates, or its best score
//     is below MinScore.
func (a *Adapter) Detect(ctx context.Context, img image.Image, task string) (detection.Detection, error) {
	if !a.opts.Enabled {
		return detection.Detection{}, apperrors.NewBackendUnavailable("detector", "detector disabled", nil)
	}

	b := img.Bounds()
	size := geometry.Size{W: b.Dx(), H: b.Dy()}

	var lastErr error
	for _, key := range a.Keys() {
		log := a.log.WithFields(logrus.Fields{"backend": key.Kind, "model": key.Model})

		backend, err := a.cache.Get(key, a.factories[key.Kind])
		if err != nil {
			log.WithError(err).Debug("detector backend unavailable")
			lastErr = err
			continue
		}

		cands, err := a.run(ctx, backend, img, task)
		if err != nil {
			log.WithError(err).Warn("detector inference failed")
			lastErr = err
			continue
		}

		best, ok := Best(cands)
		if !ok {
			return detection.Detection{}, apperrors.NewNoMatch(fmt.Sprintf("%s: no candidates", key.Kind))
		}
		if best.Score < a.opts.MinScore {
			return detection.Detection{}, apperrors.NewNoMatch(
				fmt.Sprintf("%s: best score %.3f below %.3f", key.Kind, best.Score, a.opts.MinScore))
		}

		label := best.Label
		if label == "" {
			label = string(key.Kind)
		}
		log.WithFields(logrus.Fields{"score": best.Score, "label": label}).Debug("detector hit")
		return detection.NewScored(geometry.Clamp(best.Box, size), LabelPrefix+label, detection.SourceDetector, best.Score), nil
	}

	return detection.Detection{}, apperrors.NewBackendUnavailable("detector", "no backend could run", lastErr)
}

func (a *Adapter) run(ctx context.Context, backend Backend, img image.Image, task string) (cands []Candidate, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	// Native backends can panic on malformed model output; treat that as a failed run.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panicked: %v", r)
		}
	}()
	return backend.Detect(ctx, img, task)
}
