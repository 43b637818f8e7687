package detector

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/geometry"
)

func newTestAdapter(opts Options, onnx, pipe Factory) *Adapter {
	a := NewAdapter(opts, nil, nil)
	if onnx != nil {
		a.WithFactory(KindONNX, onnx)
	}
	if pipe != nil {
		a.WithFactory(KindPipeline, pipe)
	}
	return a
}

func backendOf(b Backend) Factory {
	return func(Key) (Backend, error) { return b, nil }
}

func failing(msg string) Factory {
	return func(Key) (Backend, error) { return nil, errors.New(msg) }
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func TestAdapter_Disabled(t *testing.T) {
	a := newTestAdapter(Options{Enabled: false}, nil, nil)
	_, err := a.Detect(context.Background(), testImage(), "save")
	if !apperrors.IsKind(err, apperrors.BackendUnavailable) {
		t.Errorf("error = %v, want backend_unavailable", err)
	}
}

func TestAdapter_PicksBestAboveThreshold(t *testing.T) {
	pipe := &fakeBackend{cands: []Candidate{
		{Box: geometry.Box{X: 10, Y: 10, W: 20, H: 20}, Label: "icon", Score: 0.4},
		{Box: geometry.Box{X: 150, Y: 80, W: 100, H: 50}, Label: "save button", Score: 0.9},
	}}
	a := newTestAdapter(Options{Enabled: true, PreferONNX: true}, failing("no gocv"), backendOf(pipe))

	det, err := a.Detect(context.Background(), testImage(), "Click the Save button")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if det.Source != detection.SourceDetector {
		t.Errorf("source = %q", det.Source)
	}
	if det.Label != "det:save button" {
		t.Errorf("label = %q", det.Label)
	}
	if score, ok := det.Score(); !ok || score != 0.9 {
		t.Errorf("score = %v, %v", score, ok)
	}
	if want := (geometry.Box{X: 150, Y: 80, W: 100, H: 50}); det.Box != want {
		t.Errorf("box = %v, want %v (clamp keeps width within image)", det.Box, want)
	}
	if pipe.query != "Click the Save button" {
		t.Errorf("backend got query %q", pipe.query)
	}
}

func TestAdapter_BelowThresholdIsNoMatch(t *testing.T) {
	onnx := &fakeBackend{cands: []Candidate{{Box: geometry.Box{X: 1, Y: 1, W: 10, H: 10}, Score: 0.1}}}
	pipe := &fakeBackend{cands: []Candidate{{Box: geometry.Box{X: 1, Y: 1, W: 10, H: 10}, Score: 0.99}}}
	a := newTestAdapter(Options{Enabled: true, PreferONNX: true}, backendOf(onnx), backendOf(pipe))

	_, err := a.Detect(context.Background(), testImage(), "save")
	if !apperrors.IsKind(err, apperrors.NoMatch) {
		t.Errorf("error = %v, want no_match", err)
	}
	if pipe.calls.Load() != 0 {
		t.Error("a backend that ran should end the attempt")
	}
}

func TestAdapter_FallsThroughFailures(t *testing.T) {
	onnx := &fakeBackend{panic: true}
	pipe := &fakeBackend{cands: []Candidate{{Box: geometry.Box{X: 5, Y: 5, W: 10, H: 10}, Label: "ok", Score: 0.5}}}
	a := newTestAdapter(Options{Enabled: true, PreferONNX: true}, backendOf(onnx), backendOf(pipe))

	det, err := a.Detect(context.Background(), testImage(), "ok")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if det.Label != "det:ok" {
		t.Errorf("label = %q", det.Label)
	}
}

func TestAdapter_AllBackendsFail(t *testing.T) {
	a := newTestAdapter(Options{Enabled: true, PreferONNX: true},
		failing("no weights"),
		backendOf(&fakeBackend{err: errors.New("connection refused")}))

	_, err := a.Detect(context.Background(), testImage(), "save")
	if !apperrors.IsKind(err, apperrors.BackendUnavailable) {
		t.Errorf("error = %v, want backend_unavailable", err)
	}
}

func TestAdapter_ReusesCachedHandles(t *testing.T) {
	builds := 0
	pipe := &fakeBackend{cands: []Candidate{{Box: geometry.Box{X: 5, Y: 5, W: 10, H: 10}, Score: 0.5}}}
	a := newTestAdapter(Options{Enabled: true}, nil, func(Key) (Backend, error) {
		builds++
		return pipe, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := a.Detect(context.Background(), testImage(), "x"); err != nil {
			t.Fatal(err)
		}
	}
	if builds != 1 {
		t.Errorf("backend built %d times, want 1", builds)
	}
}

func TestAdapter_KeysIncludeOverrides(t *testing.T) {
	a := NewAdapter(Options{
		Enabled: true, PreferONNX: true,
		Model: "google/owlvit-base-patch32", ONNXPath: "/models/owl.onnx",
		PipelineURL: "http://127.0.0.1:9000/detect", Token: "hf_x",
	}, nil, nil)

	keys := a.Keys()
	if len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}
	if keys[0].Kind != KindONNX || keys[0].Model != "/models/owl.onnx" || keys[0].Token != "hf_x" {
		t.Errorf("onnx key = %+v", keys[0])
	}
	if keys[1].Kind != KindPipeline || keys[1].Model != "google/owlvit-base-patch32@http://127.0.0.1:9000/detect" {
		t.Errorf("pipeline key = %+v", keys[1])
	}

	noONNX := NewAdapter(Options{Enabled: true}, nil, nil).Keys()
	if len(noONNX) != 1 || noONNX[0].Kind != KindPipeline {
		t.Errorf("keys without onnx = %v", noONNX)
	}
}

func TestBest(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Error("Best(nil) should report nothing")
	}
	c, _ := Best([]Candidate{{Label: "a", Score: 0.5}, {Label: "b", Score: 0.5}, {Label: "c", Score: 0.2}})
	if c.Label != "a" {
		t.Errorf("tie should keep the first, got %q", c.Label)
	}
}

func TestAdapter_NamesFileSeparatesHandles(t *testing.T) {
	shared := NewHandleCache()
	var built []string
	factory := func(k Key) (Backend, error) {
		built = append(built, k.Model)
		return &fakeBackend{cands: []Candidate{{Label: "button", Box: geometry.Box{X: 1, Y: 1, W: 5, H: 5}, Score: 0.9}}}, nil
	}

	for _, names := range []string{"/models/coco.names", "/models/ui.names", "/models/coco.names"} {
		a := NewAdapter(Options{Enabled: true, PreferONNX: true, ONNXPath: "/models/owl.onnx", NamesPath: names}, shared, nil).
			WithFactory(KindONNX, factory)
		if _, err := a.Detect(context.Background(), testImage(), "save"); err != nil {
			t.Fatalf("names %s: %v", names, err)
		}
	}

	want := []string{"/models/owl.onnx#/models/coco.names", "/models/owl.onnx#/models/ui.names"}
	if len(built) != len(want) {
		t.Fatalf("built %v, want %v", built, want)
	}
	for i := range want {
		if built[i] != want[i] {
			t.Errorf("build %d model = %q, want %q", i, built[i], want[i])
		}
	}
	if shared.Len() != 2 {
		t.Errorf("cache holds %d handles, want 2", shared.Len())
	}
}
