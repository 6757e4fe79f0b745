// Package shell provides the command execution tool.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"tinker/internal/logging"
	"tinker/internal/tools"
)

// Options controls command execution limits.
type Options struct {
	// Timeout bounds each command (default 60s).
	Timeout time.Duration

	// MaxOutputBytes caps combined stdout+stderr before truncation
	// (default 50000).
	MaxOutputBytes int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.MaxOutputBytes <= 0 {
		o.MaxOutputBytes = 50000
	}
	return o
}

// RunCommandTool returns a tool for executing shell commands.
func RunCommandTool(opts Options) *tools.Tool {
	opts = opts.withDefaults()
	return &tools.Tool{
		Name:        "run_command",
		Description: "Execute a shell command and return its output",
		Category:    tools.CategoryTest,
		Priority:    70,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeRunCommand(ctx, args, opts)
		},
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command to execute",
				},
				"working_dir": {
					Type:        "string",
					Description: "Working directory for the command",
				},
			},
		},
	}
}

func executeRunCommand(ctx context.Context, args map[string]any, opts Options) (string, error) {
	command, _ := args["command"].(string)
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	workingDir, _ := args["working_dir"].(string)

	logging.ToolsDebug("run_command: cmd=%s dir=%s timeout=%v", command, workingDir, opts.Timeout)

	execCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	cmd.Dir = workingDir
	cmd.Env = os.Environ()
	// Without this, Run blocks past the deadline until every child
	// holding the output pipes exits.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}

	if len(output) > opts.MaxOutputBytes {
		output = output[:opts.MaxOutputBytes] + "\n...[truncated]"
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %v", opts.Timeout)
		}
		logging.Tools("run_command failed: %s (%v)", command, err)
		return output, fmt.Errorf("command failed: %w\nOutput:\n%s", err, output)
	}

	logging.Tools("run_command completed: %s (%d bytes output)", command, len(output))
	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}

// RegisterAll registers the shell tools with the given registry.
func RegisterAll(registry *tools.Registry, opts Options) error {
	return registry.Register(RunCommandTool(opts))
}
