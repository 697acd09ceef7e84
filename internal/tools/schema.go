package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleGetGraphSchema(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.schema == nil {
		return errResult("not configured: no database url"), nil
	}
	info, err := s.schema.GetSchema(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("schema: %v", err)), nil
	}
	cfg := s.engine.Config()
	return jsonResult(map[string]any{
		"schema":                cfg.Schema,
		"nodes_table":           cfg.NodesTable,
		"edges_table":           cfg.EdgesTable,
		"node_count":            info.NodeCount,
		"edge_count":            info.EdgeCount,
		"node_labels":           info.NodeLabels,
		"relationship_types":    info.RelationshipTypes,
		"relationship_patterns": info.RelationshipPatterns,
		"property_keys":         info.PropertyKeys,
	}), nil
}
