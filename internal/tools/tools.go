// Package tools exposes the translator over the Model Context Protocol.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/engine"
	"github.com/DeusData/pgraf-cypher/internal/store"
	"github.com/DeusData/pgraf-cypher/internal/validate"
)

// SchemaSource describes the graph for get_graph_schema.
type SchemaSource interface {
	GetSchema(ctx context.Context) (*store.SchemaInfo, error)
}

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	schema SchemaSource
}

// NewServer creates a new MCP server with all tools registered. schema may
// be nil when no database is configured.
func NewServer(e *engine.Engine, schema SchemaSource, version string) *Server {
	srv := &Server{
		engine: e,
		schema: schema,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "pgraf-cypher",
				Version: version,
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

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "translate_cypher",
		Description: "Translate a Cypher graph query into a parameterized PostgreSQL statement over the nodes/edges tables. Returns the SQL, its parameters in positional order and the strategy used per pattern (simple, parenthesized, recursive, shortest_path). Pass 'queries' to translate several at once.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Cypher query, e.g. MATCH (a:Person)-[:KNOWS*1..3]->(b) RETURN b.name"
				},
				"queries": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Several Cypher queries translated concurrently"
				},
				"params": {
					"type": "object",
					"description": "Values for $name parameters in the query"
				}
			}
		}`),
	}, s.handleTranslateCypher)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "query_graph",
		Description: "Translate a Cypher query and run it against the PostgreSQL graph. Read-only: write clauses (CREATE, MERGE, SET, DELETE) are rejected.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Cypher query to execute"
				},
				"params": {
					"type": "object",
					"description": "Values for $name parameters in the query"
				},
				"max_rows": {
					"type": "integer",
					"description": "Maximum rows to return (default 200)"
				}
			},
			"required": ["query"]
		}`),
	}, s.handleQueryGraph)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_graph_schema",
		Description: "Return node label counts, relationship type counts, the most frequent (:A)-[:T]->(:B) patterns and node property keys. Use before writing queries.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleGetGraphSchema)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "translation_history",
		Description: "List recent translations with their SQL, strategies, duration and errors, newest first.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {
					"type": "integer",
					"description": "Number of entries (default 20)"
				},
				"failed_only": {
					"type": "boolean",
					"description": "Only translations that failed"
				}
			}
		}`),
	}, s.handleTranslationHistory)
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

// translateErr prefixes err with its kind so the caller can tell a bad query
// from an unsupported one.
func translateErr(err error) *mcp.CallToolResult {
	return errResult(errorKind(err) + ": " + err.Error())
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, cypher.ErrInput):
		return "invalid query"
	case errors.Is(err, cypher.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, cypher.ErrInvariant), errors.Is(err, validate.ErrInvalidSQL):
		return "internal error"
	case errors.Is(err, engine.ErrNoExecutor):
		return "not configured"
	}
	return "error"
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
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
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg extracts a boolean argument from parsed args.
func getBoolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// getParams extracts the params object. Integral JSON numbers become int64
// so they bind as integers.
func getParams(args map[string]any) (map[string]any, error) {
	v, ok := args["params"]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'params' must be an object")
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = integral(val)
	}
	return out, nil
}

func integral(v any) any {
	switch x := v.(type) {
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = integral(x[i])
		}
		return out
	}
	return v
}
