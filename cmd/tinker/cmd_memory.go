package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tinker/internal/config"
	"tinker/internal/embedding"
	"tinker/internal/memory"
	"tinker/internal/store"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage stored memories",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored memories, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openMemory()
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := mgr.List(50)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No memories stored.")
			return nil
		}
		for _, m := range entries {
			fmt.Printf("  [%d] (%s, recalled %d) %s\n", m.ID, m.Kind, m.AccessCount, m.Content)
		}
		return nil
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, st, err := openMemory()
		if err != nil {
			return err
		}
		defer st.Close()

		hits, err := mgr.Recall(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No matching memories.")
			return nil
		}
		for _, h := range hits {
			fmt.Printf("  [%d] (%.2f) %s\n", h.ID, h.Score, h.Content)
		}
		return nil
	},
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget [id]",
	Short: "Delete a memory by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid memory id %q", args[0])
		}

		mgr, st, err := openMemory()
		if err != nil {
			return err
		}
		defer st.Close()

		deleted, err := mgr.Forget(id)
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("No memory with id %d.\n", id)
			return nil
		}
		fmt.Printf("Forgot memory %d.\n", id)
		return nil
	},
}

func openMemory() (*memory.Manager, *store.Store, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.DatabasePath(workspace))
	if err != nil {
		return nil, nil, err
	}
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	mgr := memory.NewManager(st, engine, memory.Options{
		RecallLimit: cfg.Memory.RecallLimit,
		MinScore:    cfg.Memory.MinScore,
	})
	return mgr, st, nil
}
