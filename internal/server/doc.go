// Package server implements the MCP (Model Context Protocol) server that
// exposes hotbar detection as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_dimensions: Get width and height
//   - hotbar_region: Locate the hotbar band
//   - icon_scale: Estimate the icon size
//   - hotbar_edges: Border positions, grid and cells
//   - hotbar_detect: Full pipeline report, optionally with stack counts
//   - hotbar_overlay: Annotated screenshot as base64 PNG
//
// hotbar_detect honours a progress token in the request's _meta and sends
// a notifications/progress message as each strategy finishes.
//
// # Image Caching
//
// Screenshots are cached by path for the lifetime of the server, so asking
// several tools about the same file decodes it once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(detector, entities, server.WithLogger(logger))
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
