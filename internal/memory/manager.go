// Package memory combines the store and the embedding engine into the
// long-term memory used by the agent's retrieval stage.
package memory

import (
	"context"
	"fmt"
	"strings"

	"tinker/internal/embedding"
	"tinker/internal/logging"
	"tinker/internal/store"
)

// Manager provides remember/recall/forget over embedded memories.
type Manager struct {
	store    *store.Store
	engine   embedding.Engine
	limit    int
	minScore float64
}

// Options tunes recall behavior.
type Options struct {
	// RecallLimit caps how many memories a recall returns (default 5).
	RecallLimit int

	// MinScore drops matches below this similarity (default 0.35).
	MinScore float64
}

// NewManager creates a memory manager.
func NewManager(s *store.Store, engine embedding.Engine, opts Options) *Manager {
	if opts.RecallLimit <= 0 {
		opts.RecallLimit = 5
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 0.35
	}
	return &Manager{
		store:    s,
		engine:   engine,
		limit:    opts.RecallLimit,
		minScore: opts.MinScore,
	}
}

// Remember embeds and stores a memory.
func (m *Manager) Remember(ctx context.Context, content, kind string) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, fmt.Errorf("memory content cannot be empty")
	}

	vec, err := m.engine.Embed(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("failed to embed memory: %w", err)
	}

	id, err := m.store.InsertMemory(content, kind, vec)
	if err != nil {
		return 0, err
	}

	logging.Memory("Remembered %d: %s", id, truncate(content, 80))
	return id, nil
}

// Recall returns the memories most similar to the query, best first.
func (m *Manager) Recall(ctx context.Context, query string) ([]store.ScoredMemory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	vec, err := m.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := m.store.SearchMemories(vec, m.limit, m.minScore)
	if err != nil {
		return nil, err
	}

	logging.MemoryDebug("Recall %q: %d hits", truncate(query, 60), len(hits))
	return hits, nil
}

// RecallContext renders recalled memories as a prompt context block.
// Recall failures degrade to an empty block; a broken memory subsystem
// must never abort a turn.
func (m *Manager) RecallContext(ctx context.Context, query string) string {
	hits, err := m.Recall(ctx, query)
	if err != nil {
		logging.MemoryWarn("Recall failed, continuing without memories: %v", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant memories from previous sessions:\n")
	for _, hit := range hits {
		fmt.Fprintf(&sb, "- [%s] %s\n", hit.Kind, hit.Content)
	}
	return sb.String()
}

// Forget deletes a memory by id. Returns false if it did not exist.
func (m *Manager) Forget(id int64) (bool, error) {
	deleted, err := m.store.DeleteMemory(id)
	if err != nil {
		return false, err
	}
	if deleted {
		logging.Memory("Forgot memory %d", id)
	}
	return deleted, nil
}

// List returns stored memories, newest first.
func (m *Manager) List(limit int) ([]store.Memory, error) {
	return m.store.ListMemories(limit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
