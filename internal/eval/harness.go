package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
	"github.com/ironsheep/overlay-eye/internal/llm"
	"github.com/ironsheep/overlay-eye/internal/logger"
	"github.com/ironsheep/overlay-eye/internal/pipeline"
)

// HitThreshold is the IoU at which a prediction counts as a hit.
const HitThreshold = 0.5

// BackendNone marks items the cascade could not resolve.
const BackendNone = "none"

// ItemResult is the score of one screenshot. Boxes are [x, y, w, h].
type ItemResult struct {
	File      string  `json:"file"`
	Task      string  `json:"task"`
	GTBox     [4]int  `json:"gt_bbox"`
	PredBox   *[4]int `json:"pred_bbox"`
	PredLabel *string `json:"pred_label"`
	Backend   string  `json:"backend"`
	IoU       float64 `json:"iou"`
}

// Summary aggregates a dataset run.
type Summary struct {
	Count   int          `json:"count"`
	MeanIoU float64      `json:"mean_iou"`
	Hits    int          `json:"hits@0.5"`
	Results []ItemResult `json:"results"`
}

// Options configures a Harness.
type Options struct {
	Runner pipeline.Runner
	// Cache decodes screenshots. Nil creates a private cache.
	Cache *imaging.ImageCache
	// DefaultTask is used for labels without a task. Empty falls back to
	// the vision prompt's default task.
	DefaultTask string
	// ArtifactsDir receives annotated copies of each screenshot when set.
	ArtifactsDir string
	Diag         *diag.Recorder
	Logger       *logrus.Logger
}

// Harness evaluates datasets with one Runner.
type Harness struct {
	opts Options
	log  *logrus.Logger
}

// New creates a Harness.
func New(opts Options) *Harness {
	if opts.Cache == nil {
		opts.Cache = imaging.NewImageCache()
	}
	if opts.DefaultTask == "" {
		opts.DefaultTask = llm.DefaultTask
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Harness{opts: opts, log: log}
}

// Run evaluates every labelled file of ds in lexical order. It stops early
// only when ctx is done.
func (h *Harness) Run(ctx context.Context, ds *Dataset) (*Summary, error) {
	if h.opts.Runner == nil {
		return nil, errors.New("eval: no runner configured")
	}
	if h.opts.ArtifactsDir != "" {
		if err := os.MkdirAll(h.opts.ArtifactsDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifacts dir: %w", err)
		}
	}

	var results []ItemResult
	for _, name := range ds.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := ds.Path(name)
		if _, err := os.Stat(path); err != nil {
			h.log.WithField("file", name).Debug("skipping missing image")
			continue
		}
		img, err := h.opts.Cache.Load(path)
		if err != nil {
			h.log.WithError(err).WithField("file", name).Warn("skipping unreadable image")
			continue
		}

		item := h.evaluate(ctx, name, img, ds.Labels[name])
		h.opts.Cache.Evict(path)
		results = append(results, item)
		h.opts.Diag.Record(diag.HypothesisEval, "eval:item", "evaluated image", itemFields(item))
	}

	s := Summarize(results)
	h.log.WithFields(logrus.Fields{
		"count":    s.Count,
		"mean_iou": s.MeanIoU,
		"hits":     s.Hits,
	}).Info("evaluation finished")
	return &s, nil
}

func (h *Harness) evaluate(ctx context.Context, name string, img image.Image, label Label) ItemResult {
	task := strings.TrimSpace(label.Task)
	if task == "" {
		task = h.opts.DefaultTask
	}
	gt := label.Box()
	item := ItemResult{File: name, Task: task, GTBox: toArray(gt), Backend: BackendNone}

	out := h.opts.Runner.Run(ctx, img, task)
	if out.Found {
		pred := toArray(out.Detection.Box)
		lbl := out.Detection.Label
		item.PredBox = &pred
		item.PredLabel = &lbl
		item.Backend = string(out.Detection.Source)
		item.IoU = geometry.IoU(out.Detection.Box, gt)
	}

	if h.opts.ArtifactsDir != "" {
		if err := h.annotate(name, img, gt, out); err != nil {
			h.log.WithError(err).WithField("file", name).Warn("failed to write artifact")
		}
	}
	return item
}

func (h *Harness) annotate(name string, img image.Image, gt geometry.Box, out pipeline.Outcome) error {
	outlines := []imaging.Outline{{Box: gt, Color: imaging.GroundTruthColor, Label: "gt"}}
	if out.Found {
		outlines = append(outlines, imaging.Outline{Box: out.Detection.Box, Color: imaging.PredictionColor, Label: out.Detection.Label})
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return imaging.SavePNG(filepath.Join(h.opts.ArtifactsDir, base+"_eval.png"), imaging.Annotate(img, outlines, 2))
}

// Summarize computes the aggregates over results. An empty slice has a mean
// IoU of zero.
func Summarize(results []ItemResult) Summary {
	s := Summary{Count: len(results), Results: results}
	if s.Results == nil {
		s.Results = []ItemResult{}
	}
	if len(results) == 0 {
		return s
	}

	ious := make([]float64, len(results))
	for i, r := range results {
		ious[i] = r.IoU
		if r.IoU >= HitThreshold {
			s.Hits++
		}
	}
	s.MeanIoU = stat.Mean(ious, nil)
	return s
}

// WriteSummary writes s as indented JSON, creating parent directories.
func WriteSummary(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func toArray(b geometry.Box) [4]int {
	return [4]int{b.X, b.Y, b.W, b.H}
}

func itemFields(r ItemResult) map[string]interface{} {
	f := map[string]interface{}{
		"file":    r.File,
		"task":    r.Task,
		"gt_bbox": r.GTBox,
		"backend": r.Backend,
		"iou":     r.IoU,
	}
	if r.PredBox != nil {
		f["pred_bbox"] = *r.PredBox
		f["pred_label"] = *r.PredLabel
	}
	return f
}
