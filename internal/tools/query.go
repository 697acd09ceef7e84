package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultMaxRows = 200

// errStop ends a row stream early.
var errStop = errors.New("stop")

func (s *Server) handleQueryGraph(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	query := getStringArg(args, "query")
	if query == "" {
		return errResult("missing required 'query' parameter"), nil
	}
	params, err := getParams(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	maxRows := getIntArg(args, "max_rows", defaultMaxRows)
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	var (
		columns   []string
		rows      [][]any
		truncated bool
	)
	err = s.engine.Stream(ctx, query, params, func(cols []string, row []any) error {
		if len(rows) >= maxRows {
			truncated = true
			return errStop
		}
		columns = cols
		rows = append(rows, row)
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return translateErr(err), nil
	}

	return jsonResult(map[string]any{
		"columns":   columns,
		"rows":      rows,
		"total":     len(rows),
		"truncated": truncated,
	}), nil
}
