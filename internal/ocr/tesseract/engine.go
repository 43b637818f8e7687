// Package tesseract runs Tesseract OCR over captures and returns word tokens
// grouped into lines.
//
// Tesseract must be installed along with the language data:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
//
// A gosseract client is not safe for concurrent use, so Recognize builds one
// per call.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
	"github.com/ironsheep/overlay-eye/internal/logger"
	"github.com/ironsheep/overlay-eye/internal/ocr"
)

// Engine recognizes words on a capture.
type Engine struct {
	language string
	upscale  float64
	log      *logrus.Logger
}

// New creates an Engine. An empty language means "eng".
func New(language string, upscale float64, log *logrus.Logger) *Engine {
	if language == "" {
		language = "eng"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{language: language, upscale: upscale, log: log}
}

// Recognize runs a single-block page segmentation pass over img and returns
// the full text plus word tokens in capture pixel coordinates.
//
// Tesseract cannot be interrupted mid-pass; ctx is checked before starting.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}

	prepared, factor := ocr.Preprocess(img, e.upscale)
	data, err := imaging.EncodePNG(prepared)
	if err != nil {
		return ocr.Result{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		// Text alone still feeds the vision prompt.
		e.log.WithError(err).Warn("word boxes unavailable, continuing with text only")
		return ocr.Result{Text: text, Tokens: []ocr.Token{}}, nil
	}

	tokens := make([]ocr.Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, ocr.Token{
			Text:       word,
			Confidence: b.Confidence,
			Box:        geometry.FromCorners(b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y),
			LineID:     lineID(b.BlockNum, b.ParNum, b.LineNum),
		})
	}

	size := imaging.SizeOf(img)
	return ocr.Result{Text: text, Tokens: ocr.RescaleTokens(tokens, factor, size)}, nil
}

func lineID(block, par, line int) string {
	return fmt.Sprintf("%d.%d.%d", block, par, line)
}
