// Package mcp exposes the tool registry to other coding agents over the
// Model Context Protocol's stdio transport. Every registered tool becomes
// an MCP tool with its schema translated.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tinker/internal/logging"
	"tinker/internal/tools"
)

// Version is the advertised server version.
const Version = "1.0.0"

// NewServer builds an MCP server over the registry.
func NewServer(registry *tools.Registry) *server.MCPServer {
	s := server.NewMCPServer(
		"tinker",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Coding assistant tools: file operations, shell commands, web fetches and model-assisted code repair."),
	)

	for _, tool := range registry.All() {
		s.AddTool(definition(tool), handler(registry, tool))
		logging.MCPDebug("Exposed tool: %s", tool.Name)
	}

	logging.MCP("MCP server ready with %d tools", registry.Count())
	return s
}

// ServeStdio runs the server over stdin/stdout until the client hangs up.
func ServeStdio(registry *tools.Registry) error {
	return server.ServeStdio(NewServer(registry))
}

// definition translates a registry tool schema into an MCP tool.
func definition(tool *tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(tool.Description),
	}

	required := make(map[string]bool, len(tool.Schema.Required))
	for _, name := range tool.Schema.Required {
		required[name] = true
	}

	for name, prop := range tool.Schema.Properties {
		var propOpts []mcp.PropertyOption
		if prop.Description != "" {
			propOpts = append(propOpts, mcp.Description(prop.Description))
		}
		if required[name] {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(name, propOpts...))
	}

	return mcp.NewTool(tool.Name, opts...)
}

// handler adapts registry execution to the MCP call signature.
func handler(registry *tools.Registry, tool *tools.Tool) server.ToolHandlerFunc {
	name := tool.Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]any)
		for propName := range tool.Schema.Properties {
			if v := req.GetString(propName, ""); v != "" {
				args[propName] = v
			}
		}

		logging.MCP("Call: %s", name)
		result, err := registry.Execute(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return mcp.NewToolResultText(result.Result), nil
	}
}
