package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/diag"
)

// EventKind classifies a transition.
type EventKind string

const (
	EventAttempt  EventKind = "attempt"
	EventAccepted EventKind = "accepted"
	EventRejected EventKind = "rejected"
	EventResolved EventKind = "resolved"
	EventNotFound EventKind = "not_found"
)

// Event is one observable step of a run.
type Event struct {
	RunID     string               `json:"run_id"`
	Stage     Stage                `json:"stage"`
	Kind      EventKind            `json:"kind"`
	Detection *detection.Detection `json:"detection,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Time      time.Time            `json:"time"`
}

// EventSink receives events. Emit must not block for long; it runs on the
// pipeline goroutine.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Emit implements EventSink.
func (f SinkFunc) Emit(e Event) { f(e) }

// MultiSink fans one event out to several sinks in order.
type MultiSink []EventSink

// Emit implements EventSink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

// LogSink writes events to the operational logger. Attempts log at debug,
// rejections at info, terminal events at info.
func LogSink(log *logrus.Logger) EventSink {
	return SinkFunc(func(e Event) {
		entry := log.WithFields(eventFields(e))
		switch e.Kind {
		case EventAttempt, EventAccepted:
			entry.Debug("pipeline stage")
		default:
			entry.Info("pipeline stage")
		}
	})
}

// DiagSink writes events to the diagnostic log under hypothesis H3. Stage
// failures with a detection also get an H2 line so parser and detector
// misses can be filtered on their own.
func DiagSink(rec *diag.Recorder) EventSink {
	return SinkFunc(func(e Event) {
		data := eventFields(e)
		rec.RecordRun(e.RunID, diag.HypothesisPipeline, "pipeline:"+string(e.Stage), string(e.Kind), data)
		if e.Kind == EventRejected && e.Stage != StageInit {
			rec.RecordRun(e.RunID, diag.HypothesisParse, string(e.Stage)+":miss", "candidate rejected", data)
		}
	})
}

func eventFields(e Event) logrus.Fields {
	f := logrus.Fields{
		"run_id": e.RunID,
		"stage":  e.Stage,
		"kind":   e.Kind,
	}
	if e.Reason != "" {
		f["reason"] = e.Reason
	}
	if d := e.Detection; d != nil {
		f["bbox"] = d.Box
		f["label"] = d.Label
		f["source"] = d.Source
		if c, ok := d.Score(); ok {
			f["confidence"] = c
		}
	}
	return f
}
