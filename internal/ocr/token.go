package ocr

import (
	"strings"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// Token is one recognized word.
type Token struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        geometry.Box `json:"box"`
	LineID     string       `json:"line_id"`
}

// Result is the output of one recognition pass.
type Result struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

// Snippet returns the recognized text collapsed to single spaces and cut to
// at most maxChars runes. maxChars <= 0 means no limit.
func (r Result) Snippet(maxChars int) string {
	text := strings.Join(strings.Fields(r.Text), " ")
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return text
}
