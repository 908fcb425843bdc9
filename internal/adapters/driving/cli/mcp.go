package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/contextd/internal/adapters/driving/mcp"
	"github.com/tessellate-ai/contextd/internal/core/domain"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default, for Claude Desktop)
  contextd mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  contextd mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().StringSlice("sources", nil,
		"sources the MCP clients may access (default: all)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if err := initServices(); err != nil {
		return err
	}

	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	rawSources, err := cmd.Flags().GetStringSlice("sources")
	if err != nil {
		return fmt.Errorf("getting sources flag: %w", err)
	}

	authorized := domain.AllSources()
	if len(rawSources) > 0 {
		authorized = authorized[:0]
		for _, raw := range rawSources {
			source, err := domain.ParseSourceID(raw)
			if err != nil {
				return err
			}
			authorized = append(authorized, source)
		}
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Context:           contextService,
		Ingest:            ingestService,
		AuthorizedSources: authorized,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	ctx := context.Background()
	if port > 0 {
		return server.RunHTTP(ctx, fmt.Sprintf(":%d", port))
	}
	return server.Run(ctx)
}
