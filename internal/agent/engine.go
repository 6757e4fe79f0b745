package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tinker/internal/intent"
	"tinker/internal/llm"
	"tinker/internal/logging"
	"tinker/internal/memory"
	"tinker/internal/store"
	"tinker/internal/tools"
)

// ErrMaxIterations is returned when a turn exhausts its step budget
// without producing an output envelope.
var ErrMaxIterations = errors.New("max iterations reached without output step")

const (
	defaultMaxIterations = 16
	defaultHistoryLimit  = 20
	rememberPrefix       = "remember:"
)

// ContextProvider contributes a context block to the prompt of each turn.
// An empty return contributes nothing.
type ContextProvider func(ctx context.Context, input string) string

// Config wires an Engine.
type Config struct {
	Client   llm.Client
	Registry *tools.Registry

	// Memory and Store are optional; without them the agent runs stateless.
	Memory *memory.Manager
	Store  *store.Store

	// SessionID groups recorded turns. Generated when empty.
	SessionID string

	// MaxIterations bounds the step loop per turn (default 16).
	MaxIterations int

	// HistoryLimit caps how many past turns seed the transcript (default 20).
	HistoryLimit int

	// OnStep, when set, is invoked for every protocol step as it is
	// processed, including the synthetic observe envelopes.
	OnStep func(Step)
}

// ActionRecord captures one executed tool call.
type ActionRecord struct {
	Tool       string
	Input      string
	Output     string
	Err        string
	DurationMs int64
}

// Result is the outcome of one user turn.
type Result struct {
	// Output is the content of the final output step, or the raw model
	// text when the model ignored the protocol.
	Output string

	// Intent is the classified request category.
	Intent intent.Intent

	// Steps is the full protocol trace.
	Steps []Step

	// Actions lists the tool calls executed during the turn.
	Actions []ActionRecord

	// Iterations counts model round trips.
	Iterations int

	// Protocol is false when the model produced no parseable envelopes.
	Protocol bool
}

type message struct {
	role string // "user" or "assistant"
	text string
}

// Engine drives the step loop for a session.
type Engine struct {
	client        llm.Client
	registry      *tools.Registry
	memory        *memory.Manager
	store         *store.Store
	sessionID     string
	maxIterations int
	historyLimit  int
	onStep        func(Step)
	providers     []ContextProvider

	mu      sync.Mutex
	history []message
}

// NewEngine creates an engine and seeds its transcript from the stored
// session history, if any.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	e := &Engine{
		client:        cfg.Client,
		registry:      cfg.Registry,
		memory:        cfg.Memory,
		store:         cfg.Store,
		sessionID:     cfg.SessionID,
		maxIterations: cfg.MaxIterations,
		historyLimit:  cfg.HistoryLimit,
		onStep:        cfg.OnStep,
	}

	if e.store != nil {
		turns, err := e.store.SessionHistory(e.sessionID, e.historyLimit)
		if err != nil {
			logging.AgentWarn("Failed to load session history: %v", err)
		} else {
			for _, t := range turns {
				e.history = append(e.history, message{role: "user", text: t.UserInput})
				e.history = append(e.history, message{role: "assistant", text: t.Response})
			}
			if len(turns) > 0 {
				logging.Session("Resumed session %s with %d turns", e.sessionID, len(turns))
			}
		}
	}

	return e, nil
}

// SessionID returns the session this engine records under.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// AddContextProvider registers an extra context source for future turns.
func (e *Engine) AddContextProvider(p ContextProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers = append(e.providers, p)
}

// Run executes one user turn: classify, retrieve, then drive the step
// loop until the model emits an output envelope.
func (e *Engine) Run(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty input")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if out, handled := e.handleRemember(ctx, input); handled {
		return &Result{Output: out, Intent: intent.IntentGeneral, Protocol: true}, nil
	}

	it := intent.Classify(input)
	available := e.registry.FilterByIntent(string(it))
	system := renderSystemPrompt(available)

	logging.Agent("Turn start: intent=%s tools=%d input_len=%d", it, len(available), len(input))

	userMsg := input
	if block := e.contextBlock(ctx, input); block != "" {
		userMsg = block + "\nRequest:\n" + input
	}
	e.history = append(e.history, message{role: "user", text: userMsg})

	result := &Result{Intent: it}

	for result.Iterations < e.maxIterations {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		response, err := e.client.CompleteWithSystem(ctx, system, renderTranscript(e.history))
		if err != nil {
			return result, fmt.Errorf("model call failed: %w", err)
		}
		result.Iterations++
		e.history = append(e.history, message{role: "assistant", text: response})

		steps := ExtractSteps(response)
		if len(steps) == 0 {
			// The model ignored the protocol. Surface its raw text.
			logging.AgentWarn("No protocol envelopes in response (len=%d)", len(response))
			result.Output = strings.TrimSpace(response)
			e.recordTurn(input, result)
			return result, nil
		}
		result.Protocol = true

		done, acted := e.processSteps(ctx, steps, result)
		if done {
			e.recordTurn(input, result)
			return result, nil
		}
		if !acted {
			// Only plan/observe steps came back. Nudge the model forward
			// instead of replaying the same transcript.
			e.history = append(e.history, message{role: "user",
				text: `{"step":"observe","content":"Continue with the next step."}`})
		}
	}

	logging.AgentError("Turn exhausted %d iterations without output", e.maxIterations)
	e.recordTurn(input, result)
	return result, ErrMaxIterations
}

// processSteps walks one batch of envelopes. Returns done when an output
// step terminated the turn, and acted when an action consumed the batch.
func (e *Engine) processSteps(ctx context.Context, steps []Step, result *Result) (done, acted bool) {
	for _, step := range steps {
		result.Steps = append(result.Steps, step)
		e.emit(step)

		switch step.Type {
		case StepPlan:
			logging.AgentDebug("Plan: %s", step.Content)

		case StepObserve:
			logging.AgentDebug("Observe: %s", step.Content)

		case StepAction:
			record := e.executeAction(ctx, step)
			result.Actions = append(result.Actions, record)

			toolOutput := record.Output
			if record.Err != "" {
				toolOutput = record.Err
			}
			obs := observeEnvelope(step.Function, toolOutput)
			e.history = append(e.history, message{role: "user", text: obs})
			e.emit(Step{Type: StepObserve, Content: "Tool '" + step.Function + "' returned: " + toolOutput})

			// Remaining envelopes in this batch were produced before
			// the tool ran; discard them and ask the model again.
			return false, true

		case StepOutput:
			result.Output = step.Content
			logging.Agent("Turn complete: %d iterations, %d actions", result.Iterations, len(result.Actions))
			return true, false
		}
	}
	return false, false
}

func (e *Engine) executeAction(ctx context.Context, step Step) ActionRecord {
	record := ActionRecord{Tool: step.Function, Input: step.Input}

	logging.Agent("Action: tool=%s input_len=%d", step.Function, len(step.Input))

	res, err := e.registry.ExecuteWithInput(ctx, step.Function, step.Input)
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		record.Err = fmt.Sprintf("Tool '%s' not available.", step.Function)
	case err != nil:
		record.Err = "Error: " + err.Error()
	default:
		record.Output = res.Result
	}
	if res != nil {
		record.DurationMs = res.DurationMs
	}
	return record
}

// handleRemember short-circuits explicit memory requests. "remember: X"
// stores X directly instead of burning a model round trip.
func (e *Engine) handleRemember(ctx context.Context, input string) (string, bool) {
	if e.memory == nil {
		return "", false
	}
	lower := strings.ToLower(input)
	if !strings.HasPrefix(lower, rememberPrefix) {
		return "", false
	}

	content := strings.TrimSpace(input[len(rememberPrefix):])
	if content == "" {
		return "Nothing to remember.", true
	}

	id, err := e.memory.Remember(ctx, content, "note")
	if err != nil {
		logging.AgentWarn("Failed to store memory: %v", err)
		return "Failed to store that: " + err.Error(), true
	}
	return fmt.Sprintf("Remembered (memory %d).", id), true
}

func (e *Engine) contextBlock(ctx context.Context, input string) string {
	var parts []string
	if e.memory != nil {
		if block := e.memory.RecallContext(ctx, input); block != "" {
			parts = append(parts, block)
		}
	}
	for _, provider := range e.providers {
		if block := provider(ctx, input); block != "" {
			parts = append(parts, block)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Context:\n" + strings.Join(parts, "\n")
}

func (e *Engine) recordTurn(input string, result *Result) {
	if e.store == nil {
		return
	}

	turnNumber, err := e.store.NextTurnNumber(e.sessionID)
	if err != nil {
		logging.AgentWarn("Failed to allocate turn number: %v", err)
		return
	}

	stepsJSON, err := json.Marshal(result.Steps)
	if err != nil {
		stepsJSON = []byte("[]")
	}

	if err := e.store.AppendTurn(e.sessionID, store.Turn{
		TurnNumber: turnNumber,
		UserInput:  input,
		Intent:     string(result.Intent),
		Response:   result.Output,
		StepsJSON:  string(stepsJSON),
	}); err != nil {
		logging.AgentWarn("Failed to record turn: %v", err)
	}
}

func (e *Engine) emit(step Step) {
	if e.onStep != nil {
		e.onStep(step)
	}
}

// renderTranscript flattens the conversation for a stateless completion
// call. The last message is always the pending user message.
func renderTranscript(history []message) string {
	var sb strings.Builder
	for _, m := range history {
		if m.role == "user" {
			sb.WriteString("User:\n")
		} else {
			sb.WriteString("Assistant:\n")
		}
		sb.WriteString(m.text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
