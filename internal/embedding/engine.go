// Package embedding provides vector embedding generation for memory recall.
// Supports the Google GenAI backend and a deterministic local fallback.
package embedding

import (
	"context"
	"fmt"
	"math"

	"tinker/internal/config"
	"tinker/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// NewEngine creates an embedding engine from configuration. Without an API
// key it falls back to the local hash engine so memory still works offline.
func NewEngine(cfg config.EmbeddingConfig) (Engine, error) {
	switch cfg.Provider {
	case "genai", "gemini":
		if cfg.APIKey == "" {
			logging.MemoryWarn("no embedding API key, falling back to local engine")
			return NewLocalEngine(), nil
		}
		engine, err := NewGenAIEngine(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case "local", "":
		return NewLocalEngine(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
