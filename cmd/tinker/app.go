package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tinker/internal/agent"
	"tinker/internal/config"
	"tinker/internal/embedding"
	"tinker/internal/llm"
	"tinker/internal/logging"
	"tinker/internal/memory"
	"tinker/internal/store"
	"tinker/internal/tools"
	"tinker/internal/tools/codefix"
	"tinker/internal/tools/core"
	"tinker/internal/tools/shell"
	"tinker/internal/tools/web"
	"tinker/internal/world"

	"github.com/google/uuid"
)

// app bundles the wired components behind one Close.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *tools.Registry
	memory   *memory.Manager
	engine   *agent.Engine
	watcher  *world.Watcher
}

// buildApp wires config, tools, storage, memory and the agent engine for
// the current workspace. onStep may be nil.
func buildApp(ctx context.Context, onStep func(agent.Step)) (*app, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	logging.Boot("LLM provider %s, model %s", cfg.LLM.Provider, client.GetModel())

	registry := tools.NewRegistry()
	if err := core.RegisterAll(registry); err != nil {
		return nil, fmt.Errorf("failed to register core tools: %w", err)
	}
	shellOpts := shell.Options{
		Timeout:        cfg.CommandTimeout(),
		MaxOutputBytes: cfg.Execution.OutputLimit,
	}
	if err := shell.RegisterAll(registry, shellOpts); err != nil {
		return nil, fmt.Errorf("failed to register shell tools: %w", err)
	}
	if err := web.RegisterAll(registry); err != nil {
		return nil, fmt.Errorf("failed to register web tools: %w", err)
	}
	if err := codefix.RegisterAll(registry, client); err != nil {
		return nil, fmt.Errorf("failed to register codefix tools: %w", err)
	}
	logging.Boot("Registered %d tools", registry.Count())

	st, err := store.Open(cfg.DatabasePath(workspace))
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, err
	}
	mem := memory.NewManager(st, engine, memory.Options{
		RecallLimit: cfg.Memory.RecallLimit,
		MinScore:    cfg.Memory.MinScore,
	})

	eng, err := agent.NewEngine(agent.Config{
		Client:        client,
		Registry:      registry,
		Memory:        mem,
		Store:         st,
		SessionID:     loadSessionID(workspace),
		MaxIterations: cfg.Agent.MaxIterations,
		HistoryLimit:  cfg.Memory.HistoryLimit,
		OnStep:        onStep,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    st,
		registry: registry,
		memory:   mem,
		engine:   eng,
	}

	a.wireWorld(ctx)
	return a, nil
}

// wireWorld attaches workspace context providers to the engine. Failures
// here degrade to a turn without workspace context.
func (a *app) wireWorld(ctx context.Context) {
	scanner := world.NewScanner(workspace)
	census, err := scanner.Scan(ctx)
	if err != nil {
		logging.WorldDebug("Workspace scan failed: %v", err)
	} else {
		summary := census.Summary()
		if summary != "" {
			a.engine.AddContextProvider(func(context.Context, string) string {
				return summary
			})
		}
	}

	watcher, err := world.NewWatcher(workspace)
	if err != nil {
		logging.WorldDebug("Watcher unavailable: %v", err)
		return
	}
	if err := watcher.Start(ctx); err != nil {
		logging.WorldDebug("Watcher failed to start: %v", err)
		return
	}
	a.watcher = watcher
	a.engine.AddContextProvider(func(context.Context, string) string {
		return a.watcher.ContextBlock()
	})
}

func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// loadSessionID reads the persisted session id for the workspace, minting
// and saving a new one on first use so later invocations resume history.
func loadSessionID(ws string) string {
	path := filepath.Join(ws, ".tinker", "session")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		_ = os.WriteFile(path, []byte(id+"\n"), 0600)
	}
	return id
}
