// Package llm provides the LLM provider clients used by the agent engine.
// Providers implement the Client interface; the factory selects one from
// config. Clients are transport-only: prompt construction and step parsing
// live in the agent package.
package llm

import (
	"context"
	"errors"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// SetModel changes the model used for completions.
	SetModel(model string)

	// GetModel returns the current model.
	GetModel() string
}

// SchemaClient is implemented by providers that can enforce a JSON schema
// on the response.
type SchemaClient interface {
	Client
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error)
}

// StreamingClient is implemented by providers that support incremental
// content delivery.
type StreamingClient interface {
	Client
	CompleteWithStreaming(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error)
}

// Provider errors.
var (
	// ErrNoAPIKey is returned when a client is constructed without credentials.
	ErrNoAPIKey = errors.New("API key not configured")

	// ErrUnknownProvider is returned by the factory for unsupported providers.
	ErrUnknownProvider = errors.New("unknown LLM provider")

	// ErrSchemaNotSupported is returned when the provider rejects structured output.
	ErrSchemaNotSupported = errors.New("provider does not support response schemas")
)
