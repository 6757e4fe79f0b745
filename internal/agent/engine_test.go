package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"tinker/internal/embedding"
	"tinker/internal/intent"
	"tinker/internal/llm"
	"tinker/internal/memory"
	"tinker/internal/store"
	"tinker/internal/tools"
	"tinker/internal/tools/core"
)

func TestMain(m *testing.M) {
	// The opencensus stats worker linked in via genai lives for the
	// whole process.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newTestEngine(t *testing.T, mock *llm.MockClient, cfg Config) *Engine {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = tools.NewRegistry()
		if err := core.RegisterAll(cfg.Registry); err != nil {
			t.Fatal(err)
		}
	}
	cfg.Client = mock
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestRunPlanActionOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")

	mock := llm.NewMockClient(
		`{"step": "plan", "content": "I will write the file"}`,
		fmt.Sprintf(`{"step": "action", "function": "write_file", "input": "%s||hello world"}`, path),
		`{"step": "output", "content": "File written."}`,
	)
	engine := newTestEngine(t, mock, Config{})

	result, err := engine.Run(context.Background(), "create hello.txt containing hello world")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Output != "File written." {
		t.Errorf("output = %q", result.Output)
	}
	if !result.Protocol {
		t.Error("Protocol = false")
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", result.Iterations)
	}
	if len(result.Actions) != 1 || result.Actions[0].Tool != "write_file" {
		t.Fatalf("actions = %+v", result.Actions)
	}
	if result.Actions[0].Err != "" {
		t.Errorf("action error = %q", result.Actions[0].Err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("file content = %q", data)
	}

	// The observation must have been fed back to the model.
	lastPrompt := mock.Prompts[len(mock.Prompts)-1]
	if !strings.Contains(lastPrompt, "Tool 'write_file' returned:") {
		t.Errorf("observation missing from transcript: %q", lastPrompt)
	}
}

func TestRunUnknownToolBecomesObservation(t *testing.T) {
	mock := llm.NewMockClient(
		`{"step": "action", "function": "launch_rocket", "input": "now"}`,
		`{"step": "output", "content": "Cannot do that."}`,
	)
	engine := newTestEngine(t, mock, Config{})

	result, err := engine.Run(context.Background(), "launch the rocket")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Output != "Cannot do that." {
		t.Errorf("output = %q", result.Output)
	}
	if len(result.Actions) != 1 || result.Actions[0].Err != "Tool 'launch_rocket' not available." {
		t.Errorf("actions = %+v", result.Actions)
	}

	lastPrompt := mock.Prompts[len(mock.Prompts)-1]
	if !strings.Contains(lastPrompt, "Tool 'launch_rocket' not available.") {
		t.Errorf("observation = %q", lastPrompt)
	}
}

func TestRunToolErrorBecomesObservation(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.txt")
	mock := llm.NewMockClient(
		fmt.Sprintf(`{"step": "action", "function": "read_file", "input": "%s"}`, missing),
		`{"step": "output", "content": "The file does not exist."}`,
	)
	engine := newTestEngine(t, mock, Config{})

	result, err := engine.Run(context.Background(), "read absent.txt")
	if err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}
	if result.Output != "The file does not exist." {
		t.Errorf("output = %q", result.Output)
	}
	if len(result.Actions) != 1 || !strings.Contains(result.Actions[0].Err, "failed to read file") {
		t.Errorf("actions = %+v", result.Actions)
	}
}

func TestRunNoProtocolSurfacesRawText(t *testing.T) {
	mock := llm.NewMockClient("I refuse to speak JSON today.")
	engine := newTestEngine(t, mock, Config{})

	result, err := engine.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Protocol {
		t.Error("Protocol = true")
	}
	if result.Output != "I refuse to speak JSON today." {
		t.Errorf("output = %q", result.Output)
	}
	if mock.Calls() != 1 {
		t.Errorf("model called %d times, want 1", mock.Calls())
	}
}

func TestRunMaxIterations(t *testing.T) {
	mock := llm.NewMockClient(
		`{"step": "plan", "content": "thinking"}`,
		`{"step": "plan", "content": "still thinking"}`,
		`{"step": "plan", "content": "more thinking"}`,
	)
	engine := newTestEngine(t, mock, Config{MaxIterations: 3})

	result, err := engine.Run(context.Background(), "do something")
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("err = %v, want ErrMaxIterations", err)
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", result.Iterations)
	}
}

func TestRunPlanOnlyBatchGetsNudged(t *testing.T) {
	mock := llm.NewMockClient(
		`{"step": "plan", "content": "first I plan"}`,
		`{"step": "output", "content": "done"}`,
	)
	engine := newTestEngine(t, mock, Config{})

	result, err := engine.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Output != "done" {
		t.Errorf("output = %q", result.Output)
	}

	// The second call must carry a nudge, not a replay of the same transcript.
	if !strings.Contains(mock.Prompts[1], "Continue with the next step.") {
		t.Errorf("prompt = %q", mock.Prompts[1])
	}
}

func TestRunModelErrorAbortsTurn(t *testing.T) {
	mock := llm.NewMockClient()
	wantErr := errors.New("transport down")
	mock.QueueError(wantErr)
	engine := newTestEngine(t, mock, Config{})

	_, err := engine.Run(context.Background(), "hello")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestRunEmptyInput(t *testing.T) {
	engine := newTestEngine(t, llm.NewMockClient(), Config{})
	if _, err := engine.Run(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestRunCancelledContext(t *testing.T) {
	engine := newTestEngine(t, llm.NewMockClient(`{"step": "plan", "content": "x"}`), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunRecordsTurn(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	mock := llm.NewMockClient(`{"step": "output", "content": "fixed"}`)
	engine := newTestEngine(t, mock, Config{Store: s, SessionID: "sess-1"})

	if _, err := engine.Run(context.Background(), "fix the bug in parser.go"); err != nil {
		t.Fatal(err)
	}

	turns, err := s.SessionHistory("sess-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Intent != string(intent.IntentCode) {
		t.Errorf("intent = %q", turns[0].Intent)
	}
	if turns[0].Response != "fixed" {
		t.Errorf("response = %q", turns[0].Response)
	}
	if !strings.Contains(turns[0].StepsJSON, `"output"`) {
		t.Errorf("steps json = %q", turns[0].StepsJSON)
	}
}

func TestEngineResumesHistory(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.AppendTurn("sess-1", store.Turn{TurnNumber: 1, UserInput: "what is 2+2?", Response: "4"})

	mock := llm.NewMockClient(`{"step": "output", "content": "8"}`)
	engine := newTestEngine(t, mock, Config{Store: s, SessionID: "sess-1"})

	if _, err := engine.Run(context.Background(), "double it"); err != nil {
		t.Fatal(err)
	}

	// The earlier exchange must appear in the transcript.
	if !strings.Contains(mock.Prompts[0], "what is 2+2?") || !strings.Contains(mock.Prompts[0], "4") {
		t.Errorf("transcript = %q", mock.Prompts[0])
	}
}

func TestRememberShortCircuit(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	mgr := memory.NewManager(s, embedding.NewLocalEngine(), memory.Options{})

	mock := llm.NewMockClient()
	engine := newTestEngine(t, mock, Config{Memory: mgr})

	result, err := engine.Run(context.Background(), "remember: the staging server is at 10.0.0.7")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(result.Output, "Remembered") {
		t.Errorf("output = %q", result.Output)
	}
	if mock.Calls() != 0 {
		t.Errorf("model called %d times, want 0", mock.Calls())
	}

	memories, _ := mgr.List(10)
	if len(memories) != 1 || memories[0].Content != "the staging server is at 10.0.0.7" {
		t.Errorf("memories = %+v", memories)
	}
}

func TestMemoryContextInjected(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	mgr := memory.NewManager(s, embedding.NewLocalEngine(), memory.Options{MinScore: 0.01})

	if _, err := mgr.Remember(context.Background(), "the project builds with make all", "fact"); err != nil {
		t.Fatal(err)
	}

	mock := llm.NewMockClient(`{"step": "output", "content": "make all"}`)
	engine := newTestEngine(t, mock, Config{Memory: mgr})

	if _, err := engine.Run(context.Background(), "how do I build the project?"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mock.Prompts[0], "the project builds with make all") {
		t.Errorf("memory not injected: %q", mock.Prompts[0])
	}
}

func TestContextProviderInjected(t *testing.T) {
	mock := llm.NewMockClient(`{"step": "output", "content": "ok"}`)
	engine := newTestEngine(t, mock, Config{})
	engine.AddContextProvider(func(ctx context.Context, input string) string {
		return "Recently changed files:\n- parser.go"
	})

	if _, err := engine.Run(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mock.Prompts[0], "Recently changed files") {
		t.Errorf("provider block missing: %q", mock.Prompts[0])
	}
	if !strings.Contains(mock.Prompts[0], "Context:") {
		t.Errorf("context header missing: %q", mock.Prompts[0])
	}
}

func TestOnStepCallback(t *testing.T) {
	var seen []StepType
	mock := llm.NewMockClient(
		`{"step": "plan", "content": "p"}
{"step": "output", "content": "o"}`,
	)
	engine := newTestEngine(t, mock, Config{OnStep: func(s Step) {
		seen = append(seen, s.Type)
	}})

	if _, err := engine.Run(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != StepPlan || seen[1] != StepOutput {
		t.Errorf("seen = %v", seen)
	}
}

func TestSystemPromptListsFilteredTools(t *testing.T) {
	registry := tools.NewRegistry()
	if err := core.RegisterAll(registry); err != nil {
		t.Fatal(err)
	}

	mock := llm.NewMockClient(`{"step": "output", "content": "ok"}`)
	engine := newTestEngine(t, mock, Config{Registry: registry})

	if _, err := engine.Run(context.Background(), "fix the bug in main.go"); err != nil {
		t.Fatal(err)
	}
	system := mock.SystemPrompts[0]
	if !strings.Contains(system, "write_file") || !strings.Contains(system, "input: path||content") {
		t.Errorf("system prompt = %q", system)
	}
	if !strings.Contains(system, `"step"`) {
		t.Errorf("protocol description missing: %q", system)
	}
}
