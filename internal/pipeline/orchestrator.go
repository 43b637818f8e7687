package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/llm"
	"github.com/ironsheep/overlay-eye/internal/ocr"
)

// Stage is a state of the cascade.
type Stage string

const (
	StageInit        Stage = "init"
	StageDetector    Stage = "try_detector"
	StageVisionLLM   Stage = "try_vision_llm"
	StageRetryStrict Stage = "retry_strict"
	StageOCR         Stage = "try_ocr"
	StageResolved    Stage = "resolved"
	StageNotFound    Stage = "not_found"
)

// Detector finds the task target with an object detector.
type Detector interface {
	Detect(ctx context.Context, img image.Image, task string) (detection.Detection, error)
}

// VisionLLM asks a vision language model for the task target.
type VisionLLM interface {
	Locate(ctx context.Context, img image.Image, req llm.Request) (detection.Detection, error)
}

// OCREngine recognizes words on a capture.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (ocr.Result, error)
}

// StageResult is what one stage produced.
type StageResult struct {
	Stage     Stage
	Detection detection.Detection
	Err       error
}

// Outcome is the terminal value of a run.
type Outcome struct {
	RunID     string              `json:"run_id"`
	Found     bool                `json:"found"`
	Detection detection.Detection `json:"detection"`
	ImageSize geometry.Size       `json:"image_size"`
	// Stage is the stage that resolved, or StageNotFound.
	Stage Stage `json:"stage"`
}

// DefaultOCRMaxChars bounds the OCR text sent to the vision model.
const DefaultOCRMaxChars = 600

// Options wires an Orchestrator. Any collaborator may be nil, in which case
// its stages are rejected as unavailable.
type Options struct {
	Detector    Detector
	LLM         VisionLLM
	OCR         OCREngine
	Policy      geometry.Policy
	OCRMaxChars int
	Sink        EventSink
	NewRunID    func() string
	Now         func() time.Time
}

// Orchestrator runs the cascade. It keeps no per-run state and is safe for
// concurrent use if its collaborators are.
type Orchestrator struct {
	detector Detector
	llm      VisionLLM
	ocr      OCREngine
	policy   geometry.Policy
	maxChars int
	sink     EventSink
	newRunID func() string
	now      func() time.Time
}

// New creates an Orchestrator. A zero Policy is replaced by the default.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		detector: opts.Detector,
		llm:      opts.LLM,
		ocr:      opts.OCR,
		policy:   opts.Policy,
		maxChars: opts.OCRMaxChars,
		sink:     opts.Sink,
		newRunID: opts.NewRunID,
		now:      opts.Now,
	}
	if o.policy.MinSidePx == 0 && o.policy.MaxSideFraction == 0 && o.policy.MaxAreaFraction == 0 {
		o.policy = geometry.DefaultPolicy()
	}
	if o.maxChars <= 0 {
		o.maxChars = DefaultOCRMaxChars
	}
	if o.sink == nil {
		o.sink = discardSink{}
	}
	if o.newRunID == nil {
		o.newRunID = diag.NewRunID
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Policy returns the validation policy in use.
func (o *Orchestrator) Policy() geometry.Policy { return o.policy }

// Run localizes task on img by trying each stage in cascade order.
//
// Parameters:
//   - ctx: Cancels backend calls. A cancelled run still returns an Outcome.
//   - img: The screenshot. Boxes in the Outcome are in its pixel space.
//   - task: Element description. Empty selects llm.DefaultTask.
//
// Returns:
//   - Outcome: Found with the first accepted detection and the stage that
//     produced it, or StageNotFound when every stage missed.
//
// Every stage's box is clamped to the image before validation, so a
// resolved detection always lies inside the screenshot.
//
// # Errors
//
// Run never fails. Backend errors, unparseable replies and rejected boxes
// are reported to the event sink and the cascade moves on to the next
// stage.
func (o *Orchestrator) Run(ctx context.Context, img image.Image, task string) Outcome {
	r := &run{o: o, id: o.newRunID(), size: sizeOf(img)}
	if task == "" {
		task = llm.DefaultTask
	}

	// init: one OCR pass shared by the vision prompt and the fallback.
	r.emit(StageInit, EventAttempt, nil, "")
	text := r.recognize(ctx, img)

	stages := []func() StageResult{
		func() StageResult { return r.tryDetector(ctx, img, task) },
		func() StageResult { return r.tryVisionLLM(ctx, img, task, text.snippet, false) },
		func() StageResult { return r.tryVisionLLM(ctx, img, task, text.snippet, true) },
		func() StageResult { return r.tryOCR(task, text.tokens) },
	}
	for _, stage := range stages {
		res := stage()
		if res.Err == nil {
			res.Detection = res.Detection.WithBox(geometry.Clamp(res.Detection.Box, r.size))
		}
		if r.accept(res) {
			r.emit(StageResolved, EventResolved, &res.Detection, string(res.Stage))
			return Outcome{RunID: r.id, Found: true, Detection: res.Detection, ImageSize: r.size, Stage: res.Stage}
		}
	}

	r.emit(StageNotFound, EventNotFound, nil, "")
	return Outcome{RunID: r.id, ImageSize: r.size, Stage: StageNotFound}
}

// run carries the values of one Run call.
type run struct {
	o    *Orchestrator
	id   string
	size geometry.Size
}

type ocrContext struct {
	snippet string
	tokens  []ocr.Token
}

func (r *run) emit(stage Stage, kind EventKind, det *detection.Detection, reason string) {
	var d *detection.Detection
	if det != nil {
		cp := det.WithLabel(det.Label)
		d = &cp
	}
	r.o.sink.Emit(Event{RunID: r.id, Stage: stage, Kind: kind, Detection: d, Reason: reason, Time: r.o.now()})
}

func (r *run) recognize(ctx context.Context, img image.Image) ocrContext {
	if r.o.ocr == nil {
		r.emit(StageInit, EventRejected, nil, "ocr engine not configured")
		return ocrContext{}
	}
	res, err := r.o.ocr.Recognize(ctx, img)
	if err != nil {
		// Degrade to no tokens; the other stages still run.
		r.emit(StageInit, EventRejected, nil, "ocr failed: "+err.Error())
		return ocrContext{}
	}
	r.emit(StageInit, EventAccepted, nil, "")
	return ocrContext{snippet: res.Snippet(r.o.maxChars), tokens: res.Tokens}
}

func (r *run) tryDetector(ctx context.Context, img image.Image, task string) StageResult {
	r.emit(StageDetector, EventAttempt, nil, "")
	if r.o.detector == nil {
		return StageResult{Stage: StageDetector, Err: apperrors.NewBackendUnavailable("detector", "detector not configured", nil)}
	}
	det, err := r.o.detector.Detect(ctx, img, task)
	return StageResult{Stage: StageDetector, Detection: det, Err: err}
}

func (r *run) tryVisionLLM(ctx context.Context, img image.Image, task, snippet string, strict bool) StageResult {
	stage := StageVisionLLM
	if strict {
		stage = StageRetryStrict
	}
	r.emit(stage, EventAttempt, nil, "")
	if r.o.llm == nil {
		return StageResult{Stage: stage, Err: apperrors.NewBackendUnavailable("llm", "vision model not configured", nil)}
	}
	det, err := r.o.llm.Locate(ctx, img, llm.Request{Task: task, OCRText: snippet, Strict: strict, RunID: r.id})
	return StageResult{Stage: stage, Detection: det, Err: err}
}

func (r *run) tryOCR(task string, tokens []ocr.Token) StageResult {
	r.emit(StageOCR, EventAttempt, nil, "")
	det, _, ok := ocr.Match(task, tokens)
	if !ok {
		return StageResult{Stage: StageOCR, Err: apperrors.NewNoMatch("no OCR line matched the task")}
	}
	return StageResult{Stage: StageOCR, Detection: det}
}

// accept reports whether res resolves the run, emitting the verdict.
func (r *run) accept(res StageResult) bool {
	if res.Err != nil {
		r.emit(res.Stage, EventRejected, nil, res.Err.Error())
		return false
	}
	if err := geometry.Validate(res.Detection.Box, res.Detection.Label, r.size, r.o.policy); err != nil {
		r.emit(res.Stage, EventRejected, &res.Detection, err.Error())
		return false
	}
	r.emit(res.Stage, EventAccepted, &res.Detection, "")
	return true
}

func sizeOf(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{W: b.Dx(), H: b.Dy()}
}
