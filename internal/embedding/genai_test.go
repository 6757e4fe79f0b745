package embedding

import "testing"

func TestEmbedConfigTaskType(t *testing.T) {
	cfg := embedConfig()
	if cfg.TaskType != "SEMANTIC_SIMILARITY" {
		t.Errorf("task type = %q, want SEMANTIC_SIMILARITY", cfg.TaskType)
	}
}

func TestNewGenAIEngineRequiresKey(t *testing.T) {
	if _, err := NewGenAIEngine("", "gemini-embedding-001"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
