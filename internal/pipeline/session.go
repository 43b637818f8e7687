package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/logger"
)

// Runner is the part of Orchestrator a Session needs.
type Runner interface {
	Run(ctx context.Context, img image.Image, task string) Outcome
}

// TriggerResult is the immediate answer to Trigger.
type TriggerResult string

const (
	TriggerStarted TriggerResult = "started"
	TriggerBusy    TriggerResult = "busy"
	TriggerCleared TriggerResult = "cleared"
)

// MessageKind tells the overlay what to do.
type MessageKind string

const (
	MessageShow  MessageKind = "show"
	MessageClear MessageKind = "clear"
)

// Message is one instruction for the overlay renderer.
type Message struct {
	Seq  uint64      `json:"seq"`
	Kind MessageKind `json:"kind"`
	// Outcome is set for show messages and for clears caused by a run that
	// found nothing.
	Outcome *Outcome `json:"outcome,omitempty"`
	// DisplayBox is the detection box in display pixels (show only).
	DisplayBox geometry.Box           `json:"display_box"`
	Scale      geometry.ScaleDecision `json:"scale"`
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// AutoHide clears a shown result after this long. Zero disables it.
	AutoHide time.Duration
	// Display is the surface results are drawn on. A zero Display means
	// the capture is drawn at its own size.
	Display geometry.Display
	// Buffer is the channel capacity. Zero means 1.
	Buffer int
	Diag   *diag.Recorder
	Logger *logrus.Logger
}

// Session serializes runs for one overlay. The consumer of Results must keep
// draining it; a full channel blocks the producer side.
type Session struct {
	runner  Runner
	opts    SessionOptions
	log     *logrus.Logger
	running atomic.Bool

	mu     sync.Mutex
	shown  bool
	closed bool
	seq    uint64
	timer  *time.Timer
	out    chan Message
}

// NewSession creates a session around runner.
func NewSession(runner Runner, opts SessionOptions) *Session {
	if opts.Buffer <= 0 {
		opts.Buffer = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Session{
		runner: runner,
		opts:   opts,
		log:    log,
		out:    make(chan Message, opts.Buffer),
	}
}

// Results returns the ordered message stream. It is closed by Close.
func (s *Session) Results() <-chan Message {
	return s.out
}

// Busy reports whether a run is in flight.
func (s *Session) Busy() bool {
	return s.running.Load()
}

// Shown reports whether a result is currently displayed.
func (s *Session) Shown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// Trigger starts a run in the background, or hides the current result, or
// refuses because a run is already in flight.
func (s *Session) Trigger(ctx context.Context, img image.Image, task string) TriggerResult {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("trigger ignored: run in flight")
		return TriggerBusy
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.running.Store(false)
		return TriggerBusy
	}
	if s.shown {
		s.hideLocked(nil)
		s.mu.Unlock()
		s.running.Store(false)
		return TriggerCleared
	}
	s.mu.Unlock()

	go func() {
		defer s.running.Store(false)
		out := s.runner.Run(ctx, img, task)
		s.deliver(out)
	}()
	return TriggerStarted
}

// Run is the synchronous form of Trigger for callers that want the Outcome
// directly (the HTTP and MCP surfaces). The outcome is still published on
// Results. ok is false when a run was already in flight.
func (s *Session) Run(ctx context.Context, img image.Image, task string) (Outcome, bool) {
	if !s.running.CompareAndSwap(false, true) {
		return Outcome{}, false
	}
	defer s.running.Store(false)

	out := s.runner.Run(ctx, img, task)
	s.deliver(out)
	return out, true
}

// Clear hides whatever is shown and emits a clear message.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.hideLocked(nil)
}

// Close stops the auto-hide timer and closes Results. A run still in flight
// finishes but its outcome is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.out)
}

func (s *Session) deliver(out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !out.Found {
		// Nothing found: the overlay must not keep showing a stale box.
		s.hideLocked(&out)
		return
	}

	display := s.opts.Display
	if display.LogicalW <= 0 || display.LogicalH <= 0 {
		display = geometry.Display{LogicalW: out.ImageSize.W, LogicalH: out.ImageSize.H, PixelRatio: 1}
	}
	box, decision := geometry.ScaleToDisplay(out.Detection.Box, out.ImageSize, display)
	s.opts.Diag.RecordRun(out.RunID, diag.HypothesisScaling, "overlay:show", "scaled box", map[string]interface{}{
		"capture":  out.ImageSize,
		"display":  display,
		"factor":   decision.Factor,
		"reason":   decision.Reason,
		"src_bbox": out.Detection.Box,
		"bbox":     box,
	})

	s.seq++
	s.shown = true
	s.stopTimerLocked()
	o := out
	s.out <- Message{Seq: s.seq, Kind: MessageShow, Outcome: &o, DisplayBox: box, Scale: decision}

	if s.opts.AutoHide > 0 {
		seq := s.seq
		s.timer = time.AfterFunc(s.opts.AutoHide, func() { s.autoHide(seq) })
	}
}

func (s *Session) autoHide(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A later message superseded this timer.
	if s.closed || s.seq != seq || !s.shown {
		return
	}
	s.hideLocked(nil)
}

func (s *Session) hideLocked(out *Outcome) {
	s.stopTimerLocked()
	s.shown = false
	s.seq++
	var o *Outcome
	if out != nil {
		cp := *out
		o = &cp
	}
	s.out <- Message{Seq: s.seq, Kind: MessageClear, Outcome: o}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
