//go:build gocv

package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Scores below this are not worth returning; the adapter applies the real
// threshold.
const onnxScoreFloor = 0.05

type onnxBackend struct {
	mu    sync.Mutex // gocv.Net is not safe for concurrent Forward calls
	net   gocv.Net
	names []string
}

func newONNXBackend(modelPath, namesPath string) (Backend, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("onnx backend: no model path configured")
	}
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	names, err := loadNames(namesPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &onnxBackend{net: net, names: names}, nil
}

func (o *onnxBackend) Detect(ctx context.Context, img image.Image, query string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("converted image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(onnxInputSize, onnxInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	o.mu.Lock()
	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	o.mu.Unlock()
	defer out.Close()

	// [1, 4+classes, anchors]
	dims := out.Size()
	if len(dims) != 3 || dims[1] != 4+len(o.names) {
		return nil, fmt.Errorf("unexpected output shape %v for %d classes", dims, len(o.names))
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	b := img.Bounds()
	scaleX := float64(b.Dx()) / onnxInputSize
	scaleY := float64(b.Dy()) / onnxInputSize
	allowed := selectClasses(o.names, query)

	return decodeYOLO(data, dims[2], o.names, allowed, scaleX, scaleY, onnxScoreFloor), nil
}

func (o *onnxBackend) Close() error {
	return o.net.Close()
}
