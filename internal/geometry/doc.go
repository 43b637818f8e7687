// Package geometry provides the box arithmetic used to judge and place
// localization candidates.
//
// # Coordinate System
//
// All boxes use the standard image convention:
//   - Origin (0, 0) at the top-left corner
//   - X increases rightward, Y increases downward
//   - A Box is (X, Y, W, H) in pixels of the image it was produced for
//
// The zero Box is the "empty" box. Backends that produce nothing return it,
// and every predicate in this package treats it as invalid.
//
// # Validation
//
// IsValid is the single gate every candidate passes before the pipeline
// accepts it, regardless of which backend produced it. The rules live in
// Policy; DefaultPolicy mirrors the constraints the vision model is prompted
// with (one third of either dimension, 35% of the area).
//
// # Scaling
//
// Screenshots may be captured at physical resolution while the overlay is
// drawn in logical points. DecideScale picks the factor by comparing the
// capture size with the display's logical size and logical size times its
// device pixel ratio. When neither matches exactly the box is left unscaled
// and the decision is flagged as a fallback so callers can log it.
package geometry
