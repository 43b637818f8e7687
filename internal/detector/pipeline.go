package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
)

// pipelineBackend posts the capture to a zero-shot object-detection service.
//
// Request: multipart form with "image" (PNG), "candidate_labels" (the task)
// and "model". Response: [{"score":0.9,"label":"...","box":{"xmin":..}}].
type pipelineBackend struct {
	url   string
	model string
	token string
	http  *http.Client
}

type pipelineBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

type pipelineDetection struct {
	Score float64     `json:"score"`
	Label string      `json:"label"`
	Box   pipelineBox `json:"box"`
}

func newPipelineBackend(url, model, token string, timeout time.Duration) (*pipelineBackend, error) {
	if url == "" {
		return nil, fmt.Errorf("pipeline backend: no service URL configured")
	}
	return &pipelineBackend{
		url:   url,
		model: model,
		token: token,
		http:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *pipelineBackend) Detect(ctx context.Context, img image.Image, query string) ([]Candidate, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "capture.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.WriteField("candidate_labels", query); err != nil {
		return nil, fmt.Errorf("write labels: %w", err)
	}
	if p.model != "" {
		if err := writer.WriteField("model", p.model); err != nil {
			return nil, fmt.Errorf("write model: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var dets []pipelineDetection
	if err := json.NewDecoder(resp.Body).Decode(&dets); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	cands := make([]Candidate, 0, len(dets))
	for _, d := range dets {
		cands = append(cands, Candidate{
			Box:   geometry.FromCorners(int(d.Box.XMin), int(d.Box.YMin), int(d.Box.XMax), int(d.Box.YMax)),
			Label: d.Label,
			Score: d.Score,
		})
	}
	return cands, nil
}

func (p *pipelineBackend) Close() error {
	p.http.CloseIdleConnections()
	return nil
}
