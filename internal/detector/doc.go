// Package detector wraps zero-shot-style object detection backends behind a
// single best-effort Detect call.
//
// # Backends
//
// Two backends are tried in order:
//
//  1. onnx: an ONNX detection model run on the CPU through OpenCV DNN
//     (gocv). Built only with the "gocv" build tag; without it the backend
//     reports itself unavailable and the adapter moves on.
//  2. pipeline: an HTTP zero-shot object-detection service that takes the
//     image and the task text as a candidate label.
//
// A backend that fails to load or to run is skipped. A backend that runs but
// finds nothing above the minimum score ends the attempt: a miss is an
// answer, not a failure.
//
// # Handle Cache
//
// Backends are expensive to build (model weights, network handles), so
// HandleCache memoizes them per (kind, model, token). The model identifier
// includes any path override and the ONNX class-names file. Concurrent
// first use of a key constructs the backend exactly once; construction
// errors are remembered too until the key is evicted.
package detector
