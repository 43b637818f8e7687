//go:build !gocv

package detector

import "errors"

// Without OpenCV the onnx backend never builds and the adapter falls
// through to the inference pipeline.
func newONNXBackend(_, _ string) (Backend, error) {
	return nil, errors.New("onnx backend: gocv build tag is not enabled")
}
