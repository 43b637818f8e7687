package diag

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, b []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not JSON: %v (%q)", err, sc.Text())
		}
		out = append(out, m)
	}
	return out
}

func TestRecorder_Schema(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "debug-session", "run-1")

	r.Record(HypothesisPipeline, "pipeline.run", "stage resolved", map[string]interface{}{
		"stage": "try_vision_llm",
		"err":   errors.New("boom"),
	})

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	got := lines[0]

	for _, key := range []string{"sessionId", "runId", "hypothesisId", "location", "message", "data", "timestamp"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q in %v", key, got)
		}
	}
	if len(got) != 7 {
		t.Errorf("unexpected extra keys: %v", got)
	}
	if got["hypothesisId"] != "H3" || got["runId"] != "run-1" || got["sessionId"] != "debug-session" {
		t.Errorf("unexpected header fields: %v", got)
	}
	data := got["data"].(map[string]interface{})
	if data["stage"] != "try_vision_llm" {
		t.Errorf("data.stage = %v", data["stage"])
	}
	if data["err"] != "boom" {
		t.Errorf("errors should be stringified, got %v", data["err"])
	}
	if ts, ok := got["timestamp"].(float64); !ok || ts <= 0 {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
}

func TestRecorder_RecordRunOverridesRunID(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, "s", "default-run")
	r.RecordRun("req-42", HypothesisLLM, "llm.locate", "request sent", nil)
	r.RecordRun("", HypothesisLLM, "llm.locate", "request sent", nil)

	lines := decodeLines(t, buf.Bytes())
	if lines[0]["runId"] != "req-42" {
		t.Errorf("runId = %v, want req-42", lines[0]["runId"])
	}
	if lines[1]["runId"] != "default-run" {
		t.Errorf("runId = %v, want default-run", lines[1]["runId"])
	}
}

func TestOpen_ResetTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug_agent.log")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, "s", "r", true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	r.Record(HypothesisScaling, "overlay.show", "scaled", nil)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	b, _ := os.ReadFile(path)
	if bytes.Contains(b, []byte("stale")) {
		t.Error("reset should truncate the previous contents")
	}
	if len(decodeLines(t, b)) != 1 {
		t.Errorf("want 1 line, got %q", b)
	}
}

func TestOpen_AppendKeepsContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug_agent.log")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path, "s", "r", false)
	if err != nil {
		t.Fatal(err)
	}
	r.Record(HypothesisEval, "eval.run", "done", nil)
	r.Close()

	b, _ := os.ReadFile(path)
	if n := len(decodeLines(t, b)); n != 2 {
		t.Errorf("want 2 lines, got %d", n)
	}
}

func TestRecorder_ConcurrentWritesStayLineDelimited(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	r := New(&lockedWriter{mu: &mu, w: &buf}, "s", "r")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Record(HypothesisParse, "ocr.match", "token", map[string]interface{}{"i": i})
		}(i)
	}
	wg.Wait()

	if n := len(decodeLines(t, buf.Bytes())); n != 20 {
		t.Errorf("want 20 lines, got %d", n)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordRun("x", HypothesisLLM, "loc", "msg", nil)
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewRunID_Unique(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Error("run ids should differ")
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
