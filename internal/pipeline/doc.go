// Package pipeline runs the localization cascade and hands results to the
// overlay through a Session.
//
// # Cascade
//
// One Run walks these stages in order, on the calling goroutine:
//
//	init -> try_detector -> try_vision_llm -> retry_strict -> try_ocr -> resolved | not_found
//
// init runs OCR once; its text feeds the vision prompt and its tokens feed
// the keyword fallback. Every later stage returns a StageResult, and a
// result is accepted only if it carries no error and its box passes
// geometry.Validate. A rejected stage never aborts the run: the machine moves
// to the next stage, and only a rejected try_ocr ends in not_found.
//
// Every transition is reported to the EventSink as an Event, so a run can be
// reconstructed from the diagnostic log alone.
//
// # Session
//
// A Session allows one run at a time. Trigger while a run is in flight is
// rejected (Busy); Trigger while a result is shown hides it (Cleared)
// instead of starting a new query. Results are delivered in order on a
// single channel as show and clear messages.
package pipeline
