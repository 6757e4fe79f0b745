// Package codefix provides the model-assisted file repair tool. Given a
// file and an error message, it asks the LLM for a corrected version of
// the whole file and writes it back.
package codefix

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tinker/internal/llm"
	"tinker/internal/logging"
	"tinker/internal/tools"
)

const fixSystemPrompt = `You are a code repair assistant. You are given the full content of a file and an error message produced when using it. Return the corrected content of the ENTIRE file. Return only the file content, no explanations and no markdown code fences.`

// FixFileTool returns a tool that repairs a file using the model.
func FixFileTool(client llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "fix_file",
		Description: "Fix a broken file from an error message. Input format: filename||error_message",
		Category:    tools.CategoryCode,
		Priority:    70,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeFixFile(ctx, args, client)
		},
		Schema: tools.ToolSchema{
			Required: []string{"path", "error"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "The file path to fix",
				},
				"error": {
					Type:        "string",
					Description: "The error message describing what is broken",
				},
			},
		},
	}
}

func executeFixFile(ctx context.Context, args map[string]any, client llm.Client) (string, error) {
	path, _ := args["path"].(string)
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	errMsg, _ := args["error"].(string)
	if strings.TrimSpace(errMsg) == "" {
		return "", fmt.Errorf("error message is required")
	}

	original, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		// A missing file is repaired from empty content; the write
		// below creates it.
		original = nil
	}

	logging.ToolsDebug("fix_file: path=%s error_len=%d", path, len(errMsg))

	prompt := fmt.Sprintf("File: %s\n\nCurrent content:\n%s\n\nError:\n%s", path, original, errMsg)
	fixed, err := client.CompleteWithSystem(ctx, fixSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("model repair failed: %w", err)
	}

	fixed = StripCodeFences(fixed)
	if strings.TrimSpace(fixed) == "" {
		return "", fmt.Errorf("model returned empty file content")
	}

	if err := os.WriteFile(path, []byte(fixed), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	logging.Tools("fix_file completed: %s (%d bytes)", path, len(fixed))
	return fmt.Sprintf("Successfully fixed %s", path), nil
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, if the whole response is wrapped in one.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	if strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// RegisterAll registers the codefix tools with the given registry.
func RegisterAll(registry *tools.Registry, client llm.Client) error {
	return registry.Register(FixFileTool(client))
}
