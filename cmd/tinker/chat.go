package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tinker/internal/agent"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

// runChat drives the interactive chat loop.
func runChat() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted.")
		cancel()
	}()

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	a, err := buildApp(ctx, printStep)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(titleStyle.Render("tinker") + " — type a request, 'exit' to quit, /help for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if strings.HasPrefix(input, "/") {
			if handleChatCommand(a, input) {
				continue
			}
			break
		}

		result, err := a.engine.Run(ctx, input)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, agent.ErrMaxIterations) && result != nil {
				fmt.Println(errorStyle.Render("Reached the iteration limit before an answer."))
			} else {
				fmt.Println(errorStyle.Render("Error: " + err.Error()))
				continue
			}
		}
		if result != nil && result.Output != "" {
			printOutput(renderer, result.Output)
		}
	}
	return scanner.Err()
}

// handleChatCommand runs a slash command. Returns false to end the loop.
func handleChatCommand(a *app, input string) bool {
	cmd, rest, _ := strings.Cut(input, " ")
	switch cmd {
	case "/help":
		fmt.Println(`Commands:
  /help            show this help
  /tools           list registered tools
  /memory <query>  search stored memories
  exit, quit       leave the chat

Prefix a message with "remember:" to store a fact for later sessions.`)
	case "/tools":
		for _, t := range a.registry.All() {
			fmt.Printf("  %-14s %s  %s\n", t.Name, t.Category, t.Description)
		}
	case "/memory":
		query := strings.TrimSpace(rest)
		if query == "" {
			fmt.Println("Usage: /memory <query>")
			return true
		}
		hits, err := a.memory.Recall(context.Background(), query)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			return true
		}
		if len(hits) == 0 {
			fmt.Println("No matching memories.")
			return true
		}
		for _, h := range hits {
			fmt.Printf("  [%d] (%.2f) %s\n", h.ID, h.Score, h.Content)
		}
	case "/quit", "/exit":
		return false
	default:
		fmt.Printf("Unknown command %q. Try /help.\n", cmd)
	}
	return true
}

// printStep shows protocol progress as it happens.
func printStep(step agent.Step) {
	switch step.Type {
	case agent.StepPlan:
		fmt.Println(stepStyle.Render("  plan: " + step.Content))
	case agent.StepAction:
		if step.Input != "" {
			fmt.Println(stepStyle.Render(fmt.Sprintf("  run %s(%s)", step.Function, step.Input)))
		} else {
			fmt.Println(stepStyle.Render("  run " + step.Function))
		}
	}
}

// printOutput renders markdown output, falling back to plain text.
func printOutput(renderer *glamour.TermRenderer, output string) {
	if renderer != nil {
		if rendered, err := renderer.Render(output); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(output)
}
