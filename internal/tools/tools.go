// Package tools exposes the analysis and the stored graph as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/executer-finder/internal/config"
	"github.com/DeusData/executer-finder/internal/pipeline"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp      *mcp.Server
	cfg      *config.Config
	backends *pipeline.Backends
	indexMu  sync.Mutex

	// OnIndexed, when set, is called with the root of every successful
	// index_repository run.
	OnIndexed func(root string)
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(cfg *config.Config, b *pipeline.Backends) *Server {
	srv := &Server{
		cfg:      cfg,
		backends: b,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "executer-finder",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

type toolFunc func(ctx context.Context, args map[string]any) (any, error)

// handler adapts a toolFunc to the MCP handler signature. Errors become
// error results rather than protocol errors.
func handler(fn toolFunc) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := parseArgs(req)
		if err != nil {
			return errResult(err.Error()), nil
		}
		out, err := fn(ctx, args)
		if err != nil {
			return errResult(err.Error()), nil
		}
		return jsonResult(out), nil
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Analyze every C# file under a directory and store classes, methods, dispatch calls, invoked methods and stored procedures in the document and graph stores. Re-running is idempotent.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {
					"type": "string",
					"description": "Directory to scan. If omitted, uses the configured root."
				}
			}
		}`),
	}, handler(s.indexRepository))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_dispatch_target",
		Description: "Find the class that implements a dispatched business operation, matched by operation name plus request and response types.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"method_name": {"type": "string", "description": "Operation name (the request's MethodName)"},
				"request_type": {"type": "string", "description": "Request type argument, e.g. 'GetUserRequest'"},
				"response_type": {"type": "string", "description": "Response type argument, e.g. 'GetUserResponse'"}
			},
			"required": ["method_name", "request_type", "response_type"]
		}`),
	}, handler(s.findDispatchTarget))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_class",
		Description: "Return the stored document of a class: its methods with dispatch calls, invoked methods and stored procedures.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"namespace": {"type": "string", "description": "Namespace of the class; empty for the global namespace"},
				"class_name": {"type": "string", "description": "Simple class name"}
			},
			"required": ["class_name"]
		}`),
	}, handler(s.getClass))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_calls",
		Description: "Follow outbound CALLS, EXECUTES and EXECUTES_PROCEDURE edges from a method using BFS. Returns hop-by-hop targets and the traversed edges.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"namespace": {"type": "string", "description": "Namespace of the owning class"},
				"class_name": {"type": "string", "description": "Owning class name"},
				"method_name": {"type": "string", "description": "Method name"},
				"depth": {"type": "integer", "description": "Maximum BFS depth (1-5, default 3)"},
				"edge_types": {
					"type": "array",
					"items": {"type": "string", "enum": ["CALLS", "EXECUTES", "EXECUTES_PROCEDURE"]},
					"description": "Edge types to follow (default: all three)"
				}
			},
			"required": ["class_name", "method_name"]
		}`),
	}, handler(s.traceCalls))
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	f, ok := v.(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getStringSliceArg extracts a list of strings, skipping other values.
func getStringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
