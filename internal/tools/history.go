package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleTranslationHistory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	h := s.engine.History()
	if h == nil {
		return errResult("translation history is disabled"), nil
	}

	limit := getIntArg(args, "limit", 20)
	entries, err := h.Recent(ctx, limit, getBoolArg(args, "failed_only"))
	if err != nil {
		return errResult(fmt.Sprintf("history: %v", err)), nil
	}

	out := map[string]any{
		"entries": entries,
		"total":   len(entries),
	}
	if stats, ok := s.engine.CacheStats(); ok {
		out["cache"] = stats
	}
	return jsonResult(out), nil
}
