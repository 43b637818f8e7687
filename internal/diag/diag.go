// Package diag writes the diagnostic JSON-lines log used for offline
// debugging of localization runs.
//
// Each line is one object:
//
//	{"sessionId":"...","runId":"...","hypothesisId":"H3","location":"pipeline.run",
//	 "message":"...","data":{...},"timestamp":1700000000000}
//
// The log is never read back by the program. Hypothesis ids group lines by
// the question they help answer:
//
//   - H1: vision LLM request and reply
//   - H2: parsing, OCR and detector results
//   - H3: pipeline stage transitions
//   - H4: capture/display scaling
//   - H_eval: evaluation harness
package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Hypothesis ids.
const (
	HypothesisLLM      = "H1"
	HypothesisParse    = "H2"
	HypothesisPipeline = "H3"
	HypothesisScaling  = "H4"
	HypothesisEval     = "H_eval"
)

const (
	fieldSession    = "sessionId"
	fieldRun        = "runId"
	fieldHypothesis = "hypothesisId"
	fieldLocation   = "location"
)

// NewRunID returns a fresh identifier for one localization request.
func NewRunID() string {
	return uuid.NewString()
}

// Recorder appends diagnostic lines. It is safe for concurrent use.
type Recorder struct {
	log       *logrus.Logger
	sessionID string
	runID     string
	closer    io.Closer
}

// Open creates a Recorder appending to path. When reset is true the file is
// truncated first.
func Open(path, sessionID, runID string, reset bool) (*Recorder, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if reset {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostic log %s: %w", path, err)
	}
	r := New(f, sessionID, runID)
	r.closer = f
	return r, nil
}

// New creates a Recorder writing to w.
func New(w io.Writer, sessionID, runID string) *Recorder {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&Formatter{})
	log.SetLevel(logrus.InfoLevel)
	return &Recorder{log: log, sessionID: sessionID, runID: runID}
}

// Discard returns a Recorder that writes nothing.
func Discard() *Recorder {
	return New(io.Discard, "", "")
}

// SessionID returns the session id stamped on every line.
func (r *Recorder) SessionID() string { return r.sessionID }

// RunID returns the default run id.
func (r *Recorder) RunID() string { return r.runID }

// Record writes one line under the recorder's default run id.
func (r *Recorder) Record(hypothesisID, location, message string, data map[string]interface{}) {
	if r == nil {
		return
	}
	r.RecordRun(r.runID, hypothesisID, location, message, data)
}

// RecordRun writes one line under an explicit run id. An empty runID uses
// the recorder default.
func (r *Recorder) RecordRun(runID, hypothesisID, location, message string, data map[string]interface{}) {
	if r == nil {
		return
	}
	if runID == "" {
		runID = r.runID
	}
	fields := logrus.Fields{
		fieldSession:    r.sessionID,
		fieldRun:        runID,
		fieldHypothesis: hypothesisID,
		fieldLocation:   location,
	}
	for k, v := range data {
		fields[k] = v
	}
	r.log.WithFields(fields).Info(message)
}

// Close releases the underlying file when the recorder owns one.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// line is the on-disk schema. Field order is fixed by the struct.
type line struct {
	SessionID    string                 `json:"sessionId"`
	RunID        string                 `json:"runId"`
	HypothesisID string                 `json:"hypothesisId"`
	Location     string                 `json:"location"`
	Message      string                 `json:"message"`
	Data         map[string]interface{} `json:"data"`
	Timestamp    int64                  `json:"timestamp"`
}

// Formatter renders logrus entries in the diagnostic schema. The reserved
// fields become top-level keys; every other field lands under "data".
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	l := line{
		Message:   entry.Message,
		Data:      map[string]interface{}{},
		Timestamp: entry.Time.UnixMilli(),
	}
	for k, v := range entry.Data {
		switch k {
		case fieldSession:
			l.SessionID = fmt.Sprint(v)
		case fieldRun:
			l.RunID = fmt.Sprint(v)
		case fieldHypothesis:
			l.HypothesisID = fmt.Sprint(v)
		case fieldLocation:
			l.Location = fmt.Sprint(v)
		default:
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			l.Data[k] = v
		}
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagnostic line: %w", err)
	}
	return append(b, '\n'), nil
}
