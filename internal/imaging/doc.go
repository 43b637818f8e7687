// Package imaging handles the pixel-level chores around localization:
// loading captures, encoding them for the model, cropping previews of a
// located element, and drawing annotated copies for evaluation runs.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner.
// Boxes are geometry.Box values in the pixel space of the image they were
// produced for; functions here never rescale a box implicitly.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless
// and return new images rather than drawing on their inputs.
package imaging
