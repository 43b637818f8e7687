package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/logger"
)

func TestDiagSink(t *testing.T) {
	var buf bytes.Buffer
	sink := DiagSink(diag.New(&buf, "sess", "default"))

	d := detection.New(geometry.Box{X: 0, Y: 0, W: 1000, H: 500}, "det:panel", detection.SourceDetector)
	sink.Emit(Event{RunID: "run-9", Stage: StageDetector, Kind: EventRejected, Detection: &d, Reason: "area too large"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want H3 and H2 lines, got %d: %q", len(lines), buf.String())
	}
	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["hypothesisId"] != "H3" || first["runId"] != "run-9" || first["location"] != "pipeline:try_detector" {
		t.Errorf("line = %v", first)
	}
	data := first["data"].(map[string]interface{})
	if data["reason"] != "area too large" || data["label"] != "det:panel" {
		t.Errorf("data = %v", data)
	}
}

func TestLogSinkAndMultiSink(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("info", &buf)
	count := 0
	sink := MultiSink{LogSink(log), nil, SinkFunc(func(Event) { count++ })}

	sink.Emit(Event{RunID: "r", Stage: StageDetector, Kind: EventAttempt})
	sink.Emit(Event{RunID: "r", Stage: StageNotFound, Kind: EventNotFound})

	if count != 2 {
		t.Errorf("func sink saw %d events", count)
	}
	// Attempts log at debug and are filtered at info.
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("want 1 info line, got %d: %q", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"stage":"not_found"`) {
		t.Errorf("unexpected log output %q", buf.String())
	}
}
