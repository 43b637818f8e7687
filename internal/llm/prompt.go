package llm

import "fmt"

// SystemMessage pins the reply format.
const SystemMessage = "You are a strict JSON generator. Output only one JSON object with keys label,x,y,w,h,confidence. " +
	"No explanations, no markdown, no code fences, no extra fields."

// StrictSuffix is appended to the task on the retry after an invalid box.
const StrictSuffix = " (Return a tight box under one-third width/height/area; avoid full-screen; if unsure return not_found.)"

// DefaultTask is used when the caller supplies no task.
const DefaultTask = "Highlight the primary action button."

// Request describes one locate call.
type Request struct {
	Task    string
	OCRText string
	Strict  bool
	RunID   string
}

// EffectiveTask returns the task text sent to the model.
func (r Request) EffectiveTask() string {
	task := r.Task
	if task == "" {
		task = DefaultTask
	}
	if r.Strict {
		task += StrictSuffix
	}
	return task
}

// BuildPrompt renders the user message for a request.
func BuildPrompt(r Request) string {
	return "You are a UI locator. Given the screenshot, find the single best UI element that satisfies the task. " +
		"Return ONLY one JSON object, no prose, no code fences, no extra keys. " +
		`Schema exactly: {"label": string, "x": int, "y": int, "w": int, "h": int, "confidence": float}. ` +
		"Coordinates are absolute pixels on the screenshot. The box must tightly enclose the target (do NOT return full-screen boxes). " +
		"Box constraints: width < 33% of screenshot, height < 33%, area < 35%, unless the task explicitly asks for full screen. " +
		`If unsure, return {"label": "not_found", "x": 0, "y": 0, "w": 0, "h": 0, "confidence": 0}. ` +
		fmt.Sprintf("Task: %s. OCR snippets: %s.", r.EffectiveTask(), r.OCRText)
}
