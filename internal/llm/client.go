package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
	"github.com/ironsheep/overlay-eye/internal/detection"
	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
	"github.com/ironsheep/overlay-eye/internal/logger"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 300
	// Bytes of reply body kept in diagnostics.
	diagHeadBytes = 300
)

// Options configures a Client.
type Options struct {
	URL        string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
	Diag       *diag.Recorder
}

// Client calls a vision chat-completions endpoint.
type Client struct {
	url       string
	model     string
	maxTokens int
	timeout   time.Duration
	http      *http.Client
	log       *logrus.Logger
	diag      *diag.Recorder
}

// NewClient creates a client. Zero options take their defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		url:       opts.URL,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		http:      opts.HTTPClient,
		log:       opts.Logger,
		diag:      opts.Diag,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Images         []string       `json:"images"`
	MaxTokens      int            `json:"max_tokens"`
	Temperature    float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Locate asks the model for the element described by req and parses the
// reply against the image size. Transport failures, timeouts and non-2xx
// replies are BackendUnavailable; unusable replies are ParseFailure.
func (c *Client) Locate(ctx context.Context, img image.Image, req Request) (detection.Detection, error) {
	b := img.Bounds()
	size := geometry.Size{W: b.Dx(), H: b.Dy()}

	dataURL, err := imaging.PNGDataURL(img)
	if err != nil {
		return detection.Detection{}, apperrors.NewBackendUnavailable("llm", "failed to encode screenshot", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemMessage},
			{Role: "user", Content: BuildPrompt(req)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
		Images:         []string{dataURL},
		MaxTokens:      c.maxTokens,
		Temperature:    0,
	})
	if err != nil {
		return detection.Detection{}, apperrors.NewBackendUnavailable("llm", "failed to build request", err)
	}

	c.diag.RecordRun(req.RunID, diag.HypothesisLLM, "llm.locate:pre_request", "pre request", map[string]interface{}{
		"model":     c.model,
		"user_task": req.EffectiveTask(),
		"ocr_len":   len(req.OCRText),
		"strict":    req.Strict,
	})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return detection.Detection{}, apperrors.NewBackendUnavailable("llm", "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.diag.RecordRun(req.RunID, diag.HypothesisLLM, "llm.locate:error", "request failed", map[string]interface{}{"error": err})
		c.log.WithError(err).Warn("vision LLM request failed")
		return detection.Detection{}, apperrors.NewBackendUnavailable("llm", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return detection.Detection{}, apperrors.NewBackendUnavailable("llm", "failed to read response", err)
	}

	c.diag.RecordRun(req.RunID, diag.HypothesisLLM, "llm.locate:response", "response meta", map[string]interface{}{
		"status":    resp.StatusCode,
		"text_head": head(raw, diagHeadBytes),
		"elapsed":   time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.WithFields(logrus.Fields{"status": resp.StatusCode}).Warn("vision LLM returned an error status")
		return detection.Detection{}, apperrors.NewBackendUnavailable("llm", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return detection.Detection{}, apperrors.NewParseFailure("response is not a chat completion", err)
	}
	if len(parsed.Choices) == 0 {
		return detection.Detection{}, apperrors.NewParseFailure("response has no choices", nil)
	}

	content := parsed.Choices[0].Message.Content
	det, err := ParseResponse(content, size)
	if err != nil {
		c.diag.RecordRun(req.RunID, diag.HypothesisParse, "llm.parse", "parse failed", map[string]interface{}{
			"content_head": head([]byte(content), 400),
			"error":        err,
		})
		return detection.Detection{}, err
	}

	c.diag.RecordRun(req.RunID, diag.HypothesisParse, "llm.parse", "parsed box", map[string]interface{}{
		"box":   det.Box,
		"label": det.Label,
	})
	return det, nil
}

func head(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
