package main

import (
	"github.com/spf13/cobra"

	"github.com/kellywsq03/RAGify/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index and query tools over MCP stdio",
		Long: `Run an MCP server on stdin/stdout exposing index_documents and
query_documents. Logs go to stderr so they never corrupt the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{logToStderr: true})
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "ragify",
				Version: version,
				Logger:  a.logger,
			}, a.service)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
