package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the screenshot (PNG, JPEG, GIF or WebP)",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"path"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of a screenshot.",
			InputSchema: pathSchema(nil),
		},

		// Geometry
		{
			Name:        "hotbar_region",
			Description: "Locate the horizontal band holding the hotbar. Returns top_y (inclusive), bottom_y (exclusive), a confidence and whether the bottom-of-screen fallback was used.",
			InputSchema: pathSchema(nil),
		},
		{
			Name:        "icon_scale",
			Description: "Estimate the on-screen icon size in pixels from border spacing, falling back to the resolution tier's candidates.",
			InputSchema: pathSchema(nil),
		},
		{
			Name:        "hotbar_edges",
			Description: "List the x positions of rarity-coloured icon borders inside the hotbar, the inferred grid spacing and the candidate icon cells.",
			InputSchema: pathSchema(nil),
		},

		// Detection
		{
			Name:        "hotbar_detect",
			Description: "Run the full detection pipeline on a screenshot and return the ordered detections, rejected candidates, stack-count regions and per-stage metrics. Detections with needs_confirmation set are uncertain.",
			InputSchema: pathSchema(map[string]interface{}{
				"read_counts": map[string]interface{}{
					"type":        "boolean",
					"description": "Also read stack counts with OCR",
					"default":     false,
				},
			}),
		},
		{
			Name:        "hotbar_overlay",
			Description: "Run detection and return the screenshot as base64 PNG with the hotbar band and each detection outlined and labelled with its confidence.",
			InputSchema: pathSchema(nil),
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
