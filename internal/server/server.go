package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/ocr"
	"github.com/jtn0123/megabonk-vision/internal/pipeline"
)

// Version is reported to clients during initialize.
const Version = "0.1.0"

// Server handles MCP protocol communication
type Server struct {
	detector *pipeline.Detector
	entities []detection.Entity
	cache    *imaging.ImageCache
	counts   ocr.CountReader
	logger   *slog.Logger

	// mu serialises writes to the output stream; progress notifications
	// are sent from strategy goroutines.
	mu  sync.Mutex
	enc *json.Encoder
}

// Option configures a Server.
type Option func(*Server)

// WithImageCache shares a screenshot cache with the caller.
func WithImageCache(c *imaging.ImageCache) Option {
	return func(s *Server) { s.cache = c }
}

// WithCountReader enables stack-count reading in hotbar_detect.
func WithCountReader(r ocr.CountReader) Option {
	return func(s *Server) { s.counts = r }
}

// WithLogger sets the logger. Protocol traffic never goes to it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server that answers tool calls with d, matching against
// entities.
func New(d *pipeline.Detector, entities []detection.Entity, opts ...Option) *Server {
	s := &Server{detector: d, entities: entities}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = imaging.NewImageCache(d.DecodeTimeout())
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Run serves requests read from in, one per line, writing responses to out
// until in is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	s.mu.Lock()
	s.enc = json.NewEncoder(out)
	s.mu.Unlock()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "err", err)
			s.write(&MCPResponse{
				JSONRPC: "2.0",
				Error:   &MCPError{Code: -32700, Message: "Parse error", Data: err.Error()},
			})
			continue
		}

		if resp := s.handleRequest(ctx, &req); resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

func (s *Server) write(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return
	}
	if err := s.enc.Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "err", err)
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "megabonk-vision",
				"version": Version,
			},
		},
	}
}
