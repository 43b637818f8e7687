package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Tool names.
const (
	ToolLocateElement   = "locate_element"
	ToolEvaluateDataset = "evaluate_dataset"
	ToolScaleBox        = "scale_box"
	ToolClearResult     = "clear_result"
)

func boxSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "integer"},
			"y": map[string]interface{}{"type": "integer"},
			"w": map[string]interface{}{"type": "integer"},
			"h": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x", "y", "w", "h"},
	}
}

func displaySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Surface the box will be drawn on. The capture may be in physical pixels (logical size times pixel_ratio).",
		"properties": map[string]interface{}{
			"logical_width": map[string]interface{}{
				"type":        "integer",
				"description": "Display width in logical points",
			},
			"logical_height": map[string]interface{}{
				"type":        "integer",
				"description": "Display height in logical points",
			},
			"pixel_ratio": map[string]interface{}{
				"type":        "number",
				"description": "Device pixel ratio. Default 1.0",
				"default":     1.0,
			},
		},
		"required": []string{"logical_width", "logical_height"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: ToolLocateElement,
			Description: "Find the UI element a natural-language task refers to on a screenshot. " +
				"Tries the object detector, then the vision model (with one strict retry), then OCR keyword matching. " +
				"Returns the box in capture pixels and, when a display is given, in display pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the screenshot",
					},
					"task": map[string]interface{}{
						"type":        "string",
						"description": "What to find, e.g. \"Click the Save button\". Empty highlights the primary action button.",
					},
					"display": displaySchema(),
					"preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a 2x PNG crop (base64) of the found element. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        ToolEvaluateDataset,
			Description: "Run the localization cascade over a labelled dataset directory (images plus labels.json) and report per-image IoU, mean IoU and hits at IoU 0.5.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dataset": map[string]interface{}{
						"type":        "string",
						"description": "Directory containing labels.json and the screenshots",
					},
					"out": map[string]interface{}{
						"type":        "string",
						"description": "Optional path for the JSON summary",
					},
				},
				"required": []string{"dataset"},
			},
		},
		{
			Name:        ToolScaleBox,
			Description: "Map a box from capture pixels to display pixels, detecting HiDPI captures from the pixel ratio.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"box": boxSchema("Box in capture pixels"),
					"capture": map[string]interface{}{
						"type":        "object",
						"description": "Capture size in pixels",
						"properties": map[string]interface{}{
							"width":  map[string]interface{}{"type": "integer"},
							"height": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"width", "height"},
					},
					"display": displaySchema(),
				},
				"required": []string{"box", "capture", "display"},
			},
		},
		{
			Name:        ToolClearResult,
			Description: "Hide the result currently shown on the overlay.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
