package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGDataURL encodes img as a "data:image/png;base64,..." URL.
func PNGDataURL(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}

// CropResult is a cropped preview of a located element.
type CropResult struct {
	Region      geometry.Box `json:"region"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	ImageBase64 string       `json:"image_base64"`
	MimeType    string       `json:"mime_type"`
}

// CropBox cuts box out of img, grown by padding pixels on each side and
// limited to the image. scale resizes the crop when it is positive and not 1.
func CropBox(img image.Image, box geometry.Box, padding int, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if padding < 0 {
		padding = 0
	}

	region := geometry.FromCorners(
		box.X-padding, box.Y-padding,
		box.Right()+padding, box.Bottom()+padding,
	)
	rect := image.Rect(region.X, region.Y, region.Right(), region.Bottom()).
		Add(bounds.Min).
		Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("crop region %s outside image bounds %dx%d", box, bounds.Dx(), bounds.Dy())
	}

	cropped := imaging.Crop(img, rect)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth > 0 && newHeight > 0 {
			cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
		}
	}

	b, err := EncodePNG(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	r := rect.Sub(bounds.Min)
	return &CropResult{
		Region:      geometry.Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()},
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(b),
		MimeType:    "image/png",
	}, nil
}

// Upscale enlarges img by factor. Factors at or below 1 return img as is.
func Upscale(img image.Image, factor float64) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
