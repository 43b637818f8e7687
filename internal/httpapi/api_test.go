package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner finds a fixed box, optionally waiting on gate first.
type stubRunner struct {
	gate    chan struct{}
	started chan struct{}
	found   bool
}

func (s *stubRunner) Run(ctx context.Context, img image.Image, task string) pipeline.Outcome {
	if s.started != nil {
		close(s.started)
	}
	if s.gate != nil {
		<-s.gate
	}
	b := img.Bounds()
	out := pipeline.Outcome{RunID: "run-http", ImageSize: geometry.Size{W: b.Dx(), H: b.Dy()}, Stage: pipeline.StageNotFound}
	if s.found {
		out.Found = true
		out.Stage = pipeline.StageOCR
		out.Detection = detection.New(geometry.Box{X: 200, Y: 100, W: 80, H: 40}, "ocr:"+task, detection.SourceOCR)
	}
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func locateRequest(t *testing.T, img []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		fw, err := mw.CreateFormFile("image", "shot.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(img)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/locate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// newTestSession returns a session whose messages are drained for the test.
func newTestSession(t *testing.T, runner pipeline.Runner) *pipeline.Session {
	t.Helper()
	s := pipeline.NewSession(runner, pipeline.SessionOptions{})
	go func() {
		for range s.Results() {
		}
	}()
	t.Cleanup(s.Close)
	return s
}

func TestHealth(t *testing.T) {
	router := NewRouter(Options{Session: newTestSession(t, &stubRunner{})})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "available" || body["busy"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestLocate(t *testing.T) {
	router := NewRouter(Options{Session: newTestSession(t, &stubRunner{found: true})})

	tests := []struct {
		name        string
		fields      map[string]string
		wantDisplay *geometry.Box
	}{
		{"no display", map[string]string{"task": "Save"}, nil},
		{
			"retina display",
			map[string]string{"task": "Save", "logical_width": "320", "logical_height": "240", "pixel_ratio": "2"},
			&geometry.Box{X: 100, Y: 50, W: 40, H: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, locateRequest(t, pngBytes(t, 640, 480), tt.fields))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var resp LocateResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if !resp.Found || resp.Detection.Label != "ocr:Save" || resp.ImageSize != (geometry.Size{W: 640, H: 480}) {
				t.Errorf("resp = %+v", resp)
			}
			switch {
			case tt.wantDisplay == nil && resp.DisplayBox != nil:
				t.Errorf("unexpected display box %v", resp.DisplayBox)
			case tt.wantDisplay != nil && (resp.DisplayBox == nil || *resp.DisplayBox != *tt.wantDisplay):
				t.Errorf("display box = %v, want %v", resp.DisplayBox, tt.wantDisplay)
			}
		})
	}
}

func TestLocate_BadRequests(t *testing.T) {
	router := NewRouter(Options{Session: newTestSession(t, &stubRunner{})})

	tests := []struct {
		name   string
		img    []byte
		fields map[string]string
	}{
		{"missing image", nil, map[string]string{"task": "x"}},
		{"not an image", []byte("hello"), nil},
		{"bad width", pngBytes(t, 10, 10), map[string]string{"logical_width": "wide", "logical_height": "10"}},
		{"bad ratio", pngBytes(t, 10, 10), map[string]string{"logical_width": "10", "logical_height": "10", "pixel_ratio": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, locateRequest(t, tt.img, tt.fields))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLocate_Busy(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{}), started: make(chan struct{})}
	session := newTestSession(t, runner)
	router := NewRouter(Options{Session: session})

	if got := session.Trigger(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)), "x"); got != pipeline.TriggerStarted {
		t.Fatalf("trigger = %s", got)
	}
	<-runner.started
	defer close(runner.gate)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, locateRequest(t, pngBytes(t, 10, 10), nil))
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestLocate_NoSession(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(w, locateRequest(t, pngBytes(t, 10, 10), nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestOverlayFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)
	session := pipeline.NewSession(&stubRunner{found: true}, pipeline.SessionOptions{})
	defer session.Close()
	go hub.Pump(session.Results())

	srv := httptest.NewServer(NewRouter(Options{Session: session, Hub: hub}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/overlay/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, ok := session.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)), "Save"); !ok {
		t.Fatal("run refused")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg pipeline.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Kind != pipeline.MessageShow || msg.Outcome == nil || msg.Outcome.Detection.Label != "ocr:Save" {
		t.Errorf("message = %+v", msg)
	}
}

func TestOverlayFeed_NoHub(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/overlay/ws", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
