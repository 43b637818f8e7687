package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/eval"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
	"github.com/ironsheep/overlay-eye/internal/pipeline"
)

// ErrBusy is returned by locate_element while another run is in flight.
var ErrBusy = errors.New("a localization run is already in flight")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "locate_element").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case ToolLocateElement:
		return s.handleLocateElement(ctx, args)
	case ToolEvaluateDataset:
		return s.handleEvaluateDataset(ctx, args)
	case ToolScaleBox:
		return s.handleScaleBox(args)
	case ToolClearResult:
		return s.handleClearResult()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Localization ===

type locateArgs struct {
	Path    string            `json:"path"`
	Task    string            `json:"task"`
	Display *geometry.Display `json:"display"`
	// Preview adds a zoomed PNG crop of the found element.
	Preview bool `json:"preview"`
}

// LocateResult is the locate_element reply.
type LocateResult struct {
	pipeline.Outcome
	DisplayBox *geometry.Box           `json:"display_box,omitempty"`
	Scale      *geometry.ScaleDecision `json:"scale,omitempty"`
	Preview    *imaging.CropResult     `json:"preview,omitempty"`
}

// Crop preview parameters for locate_element.
const (
	previewPadding = 8
	previewScale   = 2.0
)

func (s *Server) handleLocateElement(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a locateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	// Captures are one-shot; keeping them would grow with every new path.
	defer s.cache.Evict(a.Path)

	var out pipeline.Outcome
	switch {
	case s.session != nil:
		var ok bool
		if out, ok = s.session.Run(ctx, img, a.Task); !ok {
			return nil, ErrBusy
		}
	case s.runner != nil:
		out = s.runner.Run(ctx, img, a.Task)
	default:
		return nil, errors.New("no localization pipeline configured")
	}

	res := LocateResult{Outcome: out}
	if out.Found && a.Display != nil {
		box, decision := geometry.ScaleToDisplay(out.Detection.Box, out.ImageSize, *a.Display)
		res.DisplayBox = &box
		res.Scale = &decision
	}
	if out.Found && a.Preview {
		crop, err := imaging.CropBox(img, out.Detection.Box, previewPadding, previewScale)
		if err != nil {
			return nil, err
		}
		res.Preview = crop
	}
	return res, nil
}

// === Evaluation ===

type evaluateArgs struct {
	Dataset string `json:"dataset"`
	Out     string `json:"out"`
}

func (s *Server) handleEvaluateDataset(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a evaluateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Dataset == "" {
		return nil, errors.New("dataset is required")
	}
	if s.runner == nil {
		return nil, errors.New("no localization pipeline configured")
	}

	ds, err := eval.LoadDataset(a.Dataset)
	if err != nil {
		return nil, err
	}
	h := eval.New(eval.Options{Runner: s.runner, Cache: s.cache, Diag: s.diag, Logger: s.log})
	summary, err := h.Run(ctx, ds)
	if err != nil {
		return nil, err
	}
	if a.Out != "" {
		if err := eval.WriteSummary(a.Out, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// === Scaling ===

type scaleBoxArgs struct {
	Box     geometry.Box     `json:"box"`
	Capture geometry.Size    `json:"capture"`
	Display geometry.Display `json:"display"`
}

// ScaleResult is the scale_box reply.
type ScaleResult struct {
	Box   geometry.Box           `json:"box"`
	Scale geometry.ScaleDecision `json:"scale"`
}

func (s *Server) handleScaleBox(args json.RawMessage) (interface{}, error) {
	var a scaleBoxArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if !a.Capture.Valid() {
		return nil, fmt.Errorf("invalid capture size %dx%d", a.Capture.W, a.Capture.H)
	}
	box, decision := geometry.ScaleToDisplay(a.Box, a.Capture, a.Display)
	s.diag.Record(diag.HypothesisScaling, "mcp:scale_box", "scaled box", map[string]interface{}{
		"src_bbox": a.Box,
		"bbox":     box,
		"factor":   decision.Factor,
		"reason":   decision.Reason,
	})
	return ScaleResult{Box: box, Scale: decision}, nil
}

// === Overlay ===

func (s *Server) handleClearResult() (interface{}, error) {
	if s.session == nil {
		return map[string]interface{}{"cleared": false}, nil
	}
	wasShown := s.session.Shown()
	s.session.Clear()
	return map[string]interface{}{"cleared": true, "was_shown": wasShown}, nil
}
