// Package ocr holds the OCR token model and the keyword fallback used when
// neither the detector nor the vision model produced a usable box.
//
// Recognition itself lives in the tesseract subpackage, which wraps the
// Tesseract engine via gosseract/v2 and needs libtesseract at build time.
// Everything in this package is pure Go so the pipeline can be built and
// tested without it.
//
// # Tokens
//
// A Token is one recognized word: its text, Tesseract's confidence on the
// 0-100 scale (negative for layout entries that carry no text), its pixel
// box, and a LineID shared by every word on the same visual line.
//
// # Keyword Fallback
//
// Match scores each token against the task keywords:
//
//   - substring match in either direction: +2 per keyword
//   - otherwise prefix match in either direction: +1 per keyword
//   - no keywords at all: confidence / 50
//
// Tokens scoring above zero are grouped by line, and the line with the
// highest total wins. Ties go to the higher mean confidence, then to the
// line seen first.
//
// # Preprocessing
//
// Preprocess converts captures to high-contrast grayscale with bild and can
// upscale small UI text before recognition. RescaleTokens maps the boxes back
// to capture pixels afterwards.
package ocr
