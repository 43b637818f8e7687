// Package detection defines the value every localization backend produces.
//
// A Detection pairs a box in source-image pixels with a label, the Source
// that produced it, and an optional confidence in [0, 1]. The pipeline only
// ever replaces a Detection wholesale; it never edits one in place.
//
// # Labels
//
// Labels carry a backend prefix once a candidate is accepted:
//
//   - "det:<class>" for the object detector
//   - the parsed model label (default "target") for the vision LLM
//   - "ocr:<joined words>" for the OCR fallback
package detection
