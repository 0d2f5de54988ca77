package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/mcpServer"
	"github.com/akolanti/DocsetAgent/internal/rag"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [docset-id]",
	Short: "Serve a docset over MCP",
	Long: `Builds the docset and serves it to MCP clients over stdio. Two tools are
exposed: the docset's retrieval tool, named after the docset, and "ask",
which runs the agent.

Example client configuration:
  {
    "mcpServers": {
      "leases": {
        "command": "/path/to/docsetctl",
        "args": ["mcp", "<docset-id>"]
      }
    }
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc rag.Service) error {
		rt, err := svc.Build(ctx, args[0], docModel.Create)
		if err != nil {
			return fmt.Errorf("building %s: %w", args[0], err)
		}

		ports := &mcpServer.Ports{
			Docset:    rt.State.Docset,
			Tool:      rt.State.RetrievalTool,
			Retriever: rt.Vector,
			TopK:      cfg.Index.TopK,
		}
		if rt.Agent != nil {
			ports.Agent = rt.Agent
		}
		server, err := mcpServer.NewServer(ports)
		if err != nil {
			return err
		}
		return server.Run(ctx)
	})
}
