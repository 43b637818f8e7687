package ocr

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// LabelPrefix marks detections produced by the OCR fallback.
const LabelPrefix = "ocr:"

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "for": {}, "button": {}, "click": {}, "press": {},
	"find": {}, "highlight": {},
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// Keywords returns the lowercase alphanumeric words of task that are not
// stop words, in task order.
func Keywords(task string) []string {
	words := wordPattern.FindAllString(strings.ToLower(task), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// LineCandidate aggregates the matching tokens of one OCR line.
type LineCandidate struct {
	LineID        string       `json:"line_id"`
	TotalScore    float64      `json:"total_score"`
	AvgConfidence float64      `json:"avg_confidence"`
	Box           geometry.Box `json:"box"`
	Label         string       `json:"label"`
}

// Score returns the keyword score of a single token.
func Score(keywords []string, tok Token) float64 {
	word := strings.ToLower(strings.TrimSpace(tok.Text))
	if word == "" || tok.Confidence < 0 {
		return 0
	}
	if len(keywords) == 0 {
		return tok.Confidence / 50
	}

	var score float64
	for _, kw := range keywords {
		switch {
		case strings.Contains(word, kw) || strings.Contains(kw, word):
			score += 2
		case strings.HasPrefix(word, kw) || strings.HasPrefix(kw, word):
			score++
		}
	}
	return score
}

type scoredToken struct {
	tok   Token
	score float64
}

// Candidates returns one LineCandidate per line with at least one matching
// token, in first-seen line order.
func Candidates(task string, tokens []Token) []LineCandidate {
	keywords := Keywords(task)

	var lineOrder []string
	byLine := make(map[string][]scoredToken)
	for _, tok := range tokens {
		s := Score(keywords, tok)
		if s <= 0 {
			continue
		}
		if _, seen := byLine[tok.LineID]; !seen {
			lineOrder = append(lineOrder, tok.LineID)
		}
		tok.Text = strings.TrimSpace(tok.Text)
		byLine[tok.LineID] = append(byLine[tok.LineID], scoredToken{tok: tok, score: s})
	}

	out := make([]LineCandidate, 0, len(lineOrder))
	for _, id := range lineOrder {
		items := byLine[id]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].tok.Box.X < items[j].tok.Box.X
		})

		var total, confSum float64
		boxes := make([]geometry.Box, 0, len(items))
		words := make([]string, 0, len(items))
		for _, it := range items {
			total += it.score
			confSum += it.tok.Confidence
			boxes = append(boxes, it.tok.Box)
			words = append(words, it.tok.Text)
		}

		out = append(out, LineCandidate{
			LineID:        id,
			TotalScore:    total,
			AvgConfidence: confSum / float64(len(items)),
			Box:           geometry.Union(boxes...),
			Label:         strings.Join(words, " "),
		})
	}
	return out
}

// Match picks the OCR line that best matches task.
//
// Parameters:
//   - task: Element description. Its keywords (see Keywords) are scored
//     against every token.
//   - tokens: Recognized words with line ids, in image pixel space.
//
// Returns:
//   - detection.Detection: The winning line's union box, labeled
//     LabelPrefix plus its words in reading order, with source ocr.
//   - LineCandidate: The winning line with its scores, for diagnostics.
//   - bool: False when no token matched any keyword.
//
// Lines are ranked by total keyword score. Ties go to the higher average
// OCR confidence, then to the line seen first.
func Match(task string, tokens []Token) (det detection.Detection, best LineCandidate, ok bool) {
	cands := Candidates(task, tokens)
	if len(cands) == 0 {
		return detection.Detection{}, LineCandidate{}, false
	}

	best = cands[0]
	for _, c := range cands[1:] {
		if c.TotalScore > best.TotalScore ||
			(c.TotalScore == best.TotalScore && c.AvgConfidence > best.AvgConfidence) {
			best = c
		}
	}
	return detection.New(best.Box, LabelPrefix+best.Label, detection.SourceOCR), best, true
}
