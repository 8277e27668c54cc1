package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/ensemble"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/ocr"
	"github.com/jtn0123/megabonk-vision/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "hotbar_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the optional progress token.
	Meta *struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
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
// When the request carries a progress token, hotbar_detect sends one
// notifications/progress message per finished strategy.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	var progress ensemble.Progress
	if params.Meta != nil && params.Meta.ProgressToken != nil {
		progress = s.progressNotifier(params.Meta.ProgressToken)
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments, progress)
	if err != nil {
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

func (s *Server) progressNotifier(token interface{}) ensemble.Progress {
	return func(u ensemble.Update) {
		msg := u.Strategy + " done"
		if u.Err != nil {
			msg = fmt.Sprintf("%s failed: %v", u.Strategy, u.Err)
		}
		s.write(&MCPNotification{
			JSONRPC: "2.0",
			Method:  "notifications/progress",
			Params: map[string]interface{}{
				"progressToken": token,
				"progress":      u.Completed,
				"total":         u.Total,
				"message":       msg,
			},
		})
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage, progress ensemble.Progress) (interface{}, error) {
	switch name {
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Geometry
	case "hotbar_region":
		return s.handleHotbarRegion(args)
	case "icon_scale":
		return s.handleIconScale(args)
	case "hotbar_edges":
		return s.handleHotbarEdges(args)

	// Detection
	case "hotbar_detect":
		return s.handleHotbarDetect(ctx, args, progress)
	case "hotbar_overlay":
		return s.handleHotbarOverlay(ctx, args)

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

type pathArgs struct {
	Path string `json:"path"`
}

func parsePath(args json.RawMessage) (string, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", errors.New("path is required")
	}
	return a.Path, nil
}

// load returns the screenshot at path, decoded once per server lifetime.
func (s *Server) load(path string) (image.Image, *imaging.Buffer, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return img, imaging.NewBuffer(img), nil
}

func (s *Server) locate(args json.RawMessage) (pipeline.Geometry, error) {
	path, err := parsePath(args)
	if err != nil {
		return pipeline.Geometry{}, err
	}
	_, src, err := s.load(path)
	if err != nil {
		return pipeline.Geometry{}, err
	}
	return s.detector.Locate(src)
}

// === Image Information ===

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	path, err := parsePath(args)
	if err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, path)
}

// === Geometry Handlers ===

// RegionResult is returned by hotbar_region.
type RegionResult struct {
	Tier   string                 `json:"tier"`
	Region detection.HotbarRegion `json:"region"`
}

func (s *Server) handleHotbarRegion(args json.RawMessage) (interface{}, error) {
	g, err := s.locate(args)
	if err != nil {
		return nil, err
	}
	return &RegionResult{Tier: g.Tier, Region: g.Region}, nil
}

func (s *Server) handleIconScale(args json.RawMessage) (interface{}, error) {
	g, err := s.locate(args)
	if err != nil {
		return nil, err
	}
	return &g.Scale, nil
}

// EdgesResult is returned by hotbar_edges.
type EdgesResult struct {
	Edges    []detection.EdgeMark `json:"edges"`
	Grid     detection.GridParams `json:"grid"`
	HaveGrid bool                 `json:"have_grid"`
	Cells    []detection.ROI      `json:"cells"`
}

func (s *Server) handleHotbarEdges(args json.RawMessage) (interface{}, error) {
	g, err := s.locate(args)
	if err != nil {
		return nil, err
	}
	return &EdgesResult{Edges: g.Edges, Grid: g.Grid, HaveGrid: g.HaveGrid, Cells: g.Cells}, nil
}

// === Detection Handlers ===

type detectArgs struct {
	Path       string `json:"path"`
	ReadCounts bool   `json:"read_counts"`
}

// DetectResult is returned by hotbar_detect. Counts is keyed like the
// report's CountRegions.
type DetectResult struct {
	*pipeline.Report
	Counts map[int]ocr.Count `json:"counts,omitempty"`
}

func (s *Server) handleHotbarDetect(ctx context.Context, args json.RawMessage, progress ensemble.Progress) (interface{}, error) {
	var a detectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	img, src, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	report, err := s.detector.Detect(ctx, src, s.entities, progress)
	if err != nil {
		return nil, err
	}

	result := &DetectResult{Report: report}
	if a.ReadCounts && len(report.CountRegions) > 0 {
		if s.counts == nil {
			return nil, ocr.ErrUnavailable
		}
		counts, err := ocr.ReadCounts(ctx, s.counts, img, report.CountRegions)
		if err != nil {
			return nil, fmt.Errorf("failed to read counts: %w", err)
		}
		result.Counts = counts
	}
	return result, nil
}

func (s *Server) handleHotbarOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	path, err := parsePath(args)
	if err != nil {
		return nil, err
	}
	img, src, err := s.load(path)
	if err != nil {
		return nil, err
	}
	report, err := s.detector.Detect(ctx, src, s.entities, nil)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(s.detector.Overlay(img, report))
}
