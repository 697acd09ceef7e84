package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleTranslateCypher(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	if raw, ok := args["queries"].([]any); ok && len(raw) > 0 {
		return s.translateBatch(ctx, raw)
	}

	query := getStringArg(args, "query")
	if query == "" {
		return errResult("missing required 'query' parameter"), nil
	}
	params, err := getParams(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	t, err := s.engine.Translate(ctx, query, params)
	if err != nil {
		return translateErr(err), nil
	}
	return jsonResult(map[string]any{
		"sql":          t.SQL,
		"args":         t.Args(),
		"parameters":   t.Parameters,
		"placeholders": t.Placeholders,
		"strategies":   t.Strategies,
		"cache_hit":    t.CacheHit,
	}), nil
}

func (s *Server) translateBatch(ctx context.Context, raw []any) (*mcp.CallToolResult, error) {
	queries := make([]string, 0, len(raw))
	for i, q := range raw {
		str, ok := q.(string)
		if !ok || str == "" {
			return errResult(fmt.Sprintf("queries[%d] must be a non-empty string", i)), nil
		}
		queries = append(queries, str)
	}

	items, err := s.engine.TranslateBatch(ctx, queries)
	if err != nil {
		return errResult(fmt.Sprintf("batch: %v", err)), nil
	}
	out := make([]map[string]any, 0, len(items))
	failed := 0
	for _, it := range items {
		entry := map[string]any{"query": it.Query}
		if it.Err != nil {
			failed++
			entry["error"] = errorKind(it.Err) + ": " + it.Err.Error()
		} else {
			entry["sql"] = it.Translation.SQL
			entry["args"] = it.Translation.Args()
			entry["strategies"] = it.Translation.Strategies
		}
		out = append(out, entry)
	}
	return jsonResult(map[string]any{
		"results": out,
		"total":   len(out),
		"failed":  failed,
	}), nil
}
