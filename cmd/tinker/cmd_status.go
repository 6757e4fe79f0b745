package main

import (
	"fmt"

	"tinker/internal/config"
	"tinker/internal/llm"
	"tinker/internal/store"
	"tinker/internal/tools"
	"tinker/internal/tools/codefix"
	"tinker/internal/tools/core"
	"tinker/internal/tools/shell"
	"tinker/internal/tools/web"

	"github.com/spf13/cobra"
)

// statusCmd reports configuration and store statistics.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, memory stats and registered tools",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	keyState := "not set"
	if cfg.LLM.APIKey != "" {
		keyState = "set"
	}
	fmt.Printf("Workspace:  %s\n", workspace)
	fmt.Printf("Provider:   %s (model %s, api key %s)\n", cfg.LLM.Provider, cfg.LLM.Model, keyState)
	fmt.Printf("Embedding:  %s\n", cfg.Embedding.Provider)

	registry := tools.NewRegistry()
	_ = core.RegisterAll(registry)
	_ = shell.RegisterAll(registry, shell.Options{
		Timeout:        cfg.CommandTimeout(),
		MaxOutputBytes: cfg.Execution.OutputLimit,
	})
	_ = web.RegisterAll(registry)
	if client, err := llm.NewClientFromConfig(cfg); err == nil {
		_ = codefix.RegisterAll(registry, client)
	}
	fmt.Printf("Tools:      %d registered\n", registry.Count())

	st, err := store.Open(cfg.DatabasePath(workspace))
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("Store:      %d sessions, %d turns, %d memories (%s)\n",
		stats.Sessions, stats.Turns, stats.Memories, cfg.DatabasePath(workspace))
	return nil
}
