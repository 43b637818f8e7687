package geometry

import (
	"fmt"
	"strings"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
)

// Policy holds the geometric sanity rules applied to every candidate.
type Policy struct {
	// MinSidePx rejects boxes narrower or shorter than this.
	MinSidePx int `json:"min_side_px"`

	// MaxSideFraction rejects boxes whose width or height exceeds this
	// fraction of the image width or height.
	MaxSideFraction float64 `json:"max_side_fraction"`

	// MaxAreaFraction rejects boxes covering more than this fraction of the
	// image area.
	MaxAreaFraction float64 `json:"max_area_fraction"`

	// RejectLabels are sentinel labels that are always invalid.
	// Matching is case-insensitive.
	RejectLabels []string `json:"reject_labels"`
}

// DefaultPolicy returns the standard validation rules.
func DefaultPolicy() Policy {
	return Policy{
		MinSidePx:       4,
		MaxSideFraction: 0.33,
		MaxAreaFraction: 0.35,
		RejectLabels:    []string{"not_found"},
	}
}

// IsValid reports whether box passes every rule in policy.
// A zero size skips the image-relative rules.
func IsValid(box Box, label string, size Size, policy Policy) bool {
	return Validate(box, label, size, policy) == nil
}

// Validate is IsValid that names the first rule that failed.
func Validate(box Box, label string, size Size, policy Policy) error {
	if box.Empty() {
		return apperrors.NewGeometryInvalid("empty box")
	}
	if box.W < policy.MinSidePx || box.H < policy.MinSidePx {
		return apperrors.NewGeometryInvalid(fmt.Sprintf("side below %dpx: %s", policy.MinSidePx, box))
	}
	for _, reject := range policy.RejectLabels {
		if label != "" && strings.EqualFold(label, reject) {
			return apperrors.NewGeometryInvalid(fmt.Sprintf("sentinel label %q", label))
		}
	}
	if !size.Valid() {
		return nil
	}

	wFrac := float64(box.W) / float64(size.W)
	hFrac := float64(box.H) / float64(size.H)
	if wFrac > policy.MaxSideFraction || hFrac > policy.MaxSideFraction {
		return apperrors.NewGeometryInvalid(fmt.Sprintf("side fraction %.3fx%.3f exceeds %.2f", wFrac, hFrac, policy.MaxSideFraction))
	}
	areaFrac := float64(box.W*box.H) / float64(size.W*size.H)
	if areaFrac > policy.MaxAreaFraction {
		return apperrors.NewGeometryInvalid(fmt.Sprintf("area fraction %.3f exceeds %.2f", areaFrac, policy.MaxAreaFraction))
	}
	return nil
}
