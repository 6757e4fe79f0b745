package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Client for tests. It returns queued responses
// in order and records every prompt it receives.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	model     string

	// Prompts holds the user prompt of each call, in order.
	Prompts []string
	// SystemPrompts holds the system prompt of each call, in order.
	SystemPrompts []string
}

// NewMockClient creates a mock that replays the given responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{
		responses: responses,
		model:     "mock-model",
	}
}

// QueueError makes the next unanswered call fail with err.
func (m *MockClient) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) < len(m.responses) {
		m.errs = append(m.errs, nil)
	}
	m.responses = append(m.responses, "")
	m.errs = append(m.errs, err)
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, userPrompt)
	m.SystemPrompts = append(m.SystemPrompts, systemPrompt)

	i := m.calls
	m.calls++

	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i >= len(m.responses) {
		return "", fmt.Errorf("mock client exhausted after %d responses", len(m.responses))
	}
	return m.responses[i], nil
}

func (m *MockClient) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error) {
	return m.CompleteWithSystem(ctx, systemPrompt, userPrompt)
}

func (m *MockClient) SetModel(model string) { m.model = model }
func (m *MockClient) GetModel() string      { return m.model }
