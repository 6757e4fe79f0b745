package main

import (
	"tinker/internal/config"
	"tinker/internal/llm"
	"tinker/internal/mcp"
	"tinker/internal/tools"
	"tinker/internal/tools/codefix"
	"tinker/internal/tools/core"
	"tinker/internal/tools/shell"
	"tinker/internal/tools/web"

	"github.com/spf13/cobra"
)

// mcpCmd serves the tool registry over MCP stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve tinker's tools over MCP stdio",
	Long: `Exposes the tool registry to MCP clients over stdin/stdout.
Each registered tool becomes an MCP tool with its argument schema.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	if err := core.RegisterAll(registry); err != nil {
		return err
	}
	shellOpts := shell.Options{
		Timeout:        cfg.CommandTimeout(),
		MaxOutputBytes: cfg.Execution.OutputLimit,
	}
	if err := shell.RegisterAll(registry, shellOpts); err != nil {
		return err
	}
	if err := web.RegisterAll(registry); err != nil {
		return err
	}
	if client, err := llm.NewClientFromConfig(cfg); err == nil {
		if err := codefix.RegisterAll(registry, client); err != nil {
			return err
		}
	}

	return mcp.ServeStdio(registry)
}
