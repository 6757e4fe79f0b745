package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tinker/internal/agent"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd executes a single instruction non-interactively.
var runCmd = &cobra.Command{
	Use:   "run [instruction]",
	Short: "Execute a single instruction",
	Long: `Runs one request through the step loop and prints the answer.
The turn is recorded in the workspace session like any chat turn.

Example:
  tinker run "fix the failing test in store_test.go"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstruction,
}

func runInstruction(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	input := strings.Join(args, " ")
	logger.Info("Processing instruction", zap.String("input", input))

	var onStep func(agent.Step)
	if verbose {
		onStep = printStep
	}
	a, err := buildApp(ctx, onStep)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.Run(ctx, input)
	if err != nil && !errors.Is(err, agent.ErrMaxIterations) {
		return err
	}
	if result == nil || result.Output == "" {
		return fmt.Errorf("no answer produced")
	}
	fmt.Println(result.Output)
	return nil
}
