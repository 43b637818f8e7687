package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// DefaultLabel is used when the reply carries no label.
const DefaultLabel = "target"

var boxKeys = [4]string{"x", "y", "w", "h"}

// ParseResponse converts a model reply into a vision_llm Detection.
//
// Parameters:
//   - content: The raw reply text. A bare JSON object is preferred; otherwise
//     the span from the first '{' to the last '}' is parsed.
//   - size: The screenshot size. Used to scale relative coordinates and to
//     clamp the box.
//
// Returns:
//   - detection.Detection: The box clamped to size, the reply label (or
//     DefaultLabel), and the confidence when the reply carried one.
//   - error: Non-nil when the reply holds no usable object.
//
// When all four of x, y, w and h lie in (0, 1] they are read as fractions
// of the image. Otherwise they are pixels and are truncated to integers.
//
// # Errors
//
//   - ParseFailure if no JSON object can be extracted from content
//   - ParseFailure if a box key is missing, null or not a number
//
// ParseResponse never panics.
func ParseResponse(content string, size geometry.Size) (detection.Detection, error) {
	obj, err := extractObject(content)
	if err != nil {
		return detection.Detection{}, err
	}

	var vals [4]float64
	for i, key := range boxKeys {
		raw, ok := obj[key]
		if !ok || raw == nil {
			return detection.Detection{}, apperrors.NewParseFailure(fmt.Sprintf("missing key %q", key), nil)
		}
		f, ok := raw.(float64)
		if !ok {
			return detection.Detection{}, apperrors.NewParseFailure(fmt.Sprintf("key %q is not numeric (%T)", key, raw), nil)
		}
		vals[i] = f
	}

	var box geometry.Box
	if isRelative(vals) && size.Valid() {
		box = geometry.Box{
			X: int(vals[0] * float64(size.W)),
			Y: int(vals[1] * float64(size.H)),
			W: int(vals[2] * float64(size.W)),
			H: int(vals[3] * float64(size.H)),
		}
	} else {
		box = geometry.Box{X: int(vals[0]), Y: int(vals[1]), W: int(vals[2]), H: int(vals[3])}
	}
	box = geometry.Clamp(box, size)

	label, _ := obj["label"].(string)
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel
	}

	if conf, ok := obj["confidence"].(float64); ok {
		return detection.NewScored(box, label, detection.SourceVisionLLM, conf), nil
	}
	return detection.New(box, label, detection.SourceVisionLLM), nil
}

func isRelative(vals [4]float64) bool {
	for _, v := range vals {
		if v <= 0 || v > 1 {
			return false
		}
	}
	return true
}

func extractObject(content string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, apperrors.NewParseFailure("no JSON object in reply", nil)
	}
	obj = nil
	if err := json.Unmarshal([]byte(content[start:end+1]), &obj); err != nil {
		return nil, apperrors.NewParseFailure("failed to parse JSON substring", err)
	}
	if obj == nil {
		return nil, apperrors.NewParseFailure("reply object is null", nil)
	}
	return obj, nil
}
