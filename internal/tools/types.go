// Package tools defines the tool registry the agent engine dispatches into.
//
// Each tool is a standalone definition with a JSON schema; subpackages
// (core, shell, web, codefix) register their tools into a Registry at
// startup. The engine filters tools by the classified intent, offers the
// surviving subset to the model, and executes whichever tool an action
// step names.
package tools

import (
	"context"
	"strings"
)

// ToolCategory classifies tools for intent-based filtering.
type ToolCategory string

const (
	// CategoryCode covers file reading, writing, editing and code repair.
	CategoryCode ToolCategory = "/code"

	// CategoryResearch covers web fetches and lookups.
	CategoryResearch ToolCategory = "/research"

	// CategoryTest covers command execution for builds and tests.
	CategoryTest ToolCategory = "/test"

	// CategoryGeneral is for tools usable under any intent.
	CategoryGeneral ToolCategory = "/general"
)

// Property describes a single parameter in a tool schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is a single registered capability.
type Tool struct {
	// Name is the unique identifier the model uses in action steps.
	Name string

	// Description explains what the tool does. Rendered into the
	// system prompt and MCP tool listings.
	Description string

	// Category classifies the tool for intent filtering.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority orders tools when several match (default 50, higher first).
	Priority int
}

// Validate checks if the tool definition is usable.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}

// SplitInput splits a packed two-argument tool input on the first "||".
// Tools that take two arguments receive them as "first||second".
func SplitInput(input string) (string, string, bool) {
	idx := strings.Index(input, "||")
	if idx < 0 {
		return "", "", false
	}
	return input[:idx], input[idx+2:], true
}
