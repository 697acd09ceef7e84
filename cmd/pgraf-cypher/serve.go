package main

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/pgraf-cypher/internal/tools"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing
translate_cypher, query_graph, get_graph_schema and translation_history.
query_graph and get_graph_schema need a database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			e, st, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			var schema tools.SchemaSource
			if st != nil {
				schema = st
			}
			srv := tools.NewServer(e, schema, version)
			slog.Info("serve.start", "version", version, "database", st != nil)
			return srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
