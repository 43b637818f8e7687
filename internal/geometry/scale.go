package geometry

import "math"

// ScaleReason records why a scale factor was chosen.
type ScaleReason string

const (
	// ScaleIdentity means the capture matched the logical display size.
	ScaleIdentity ScaleReason = "identity"
	// ScalePhysicalToLogical means the capture matched logical size times
	// the device pixel ratio.
	ScalePhysicalToLogical ScaleReason = "physical_to_logical"
	// ScaleFallback means no reliable mapping was found; the box is drawn
	// unscaled.
	ScaleFallback ScaleReason = "fallback"
)

// Display describes the surface a box will be drawn on.
type Display struct {
	LogicalW   int     `json:"logical_width"`
	LogicalH   int     `json:"logical_height"`
	PixelRatio float64 `json:"pixel_ratio"`
}

// ScaleDecision is the factor applied to a box and the reason for it.
type ScaleDecision struct {
	Factor float64     `json:"factor"`
	Reason ScaleReason `json:"reason"`
}

// DecideScale picks the capture->display factor. A non-positive pixel
// ratio is treated as 1.
func DecideScale(capture Size, display Display) ScaleDecision {
	ratio := display.PixelRatio
	if ratio <= 0 {
		ratio = 1.0
	}

	if capture.W == display.LogicalW && capture.H == display.LogicalH {
		return ScaleDecision{Factor: 1.0, Reason: ScaleIdentity}
	}

	physW := int(math.Round(float64(display.LogicalW) * ratio))
	physH := int(math.Round(float64(display.LogicalH) * ratio))
	if capture.W == physW && capture.H == physH {
		return ScaleDecision{Factor: 1.0 / ratio, Reason: ScalePhysicalToLogical}
	}

	return ScaleDecision{Factor: 1.0, Reason: ScaleFallback}
}

// ScaleBox multiplies every component by factor and floors the result.
func ScaleBox(b Box, factor float64) Box {
	return Box{
		X: int(math.Floor(float64(b.X) * factor)),
		Y: int(math.Floor(float64(b.Y) * factor)),
		W: int(math.Floor(float64(b.W) * factor)),
		H: int(math.Floor(float64(b.H) * factor)),
	}
}

// ScaleToDisplay maps a box from capture pixels to display pixels.
func ScaleToDisplay(b Box, capture Size, display Display) (Box, ScaleDecision) {
	decision := DecideScale(capture, display)
	return ScaleBox(b, decision.Factor), decision
}
