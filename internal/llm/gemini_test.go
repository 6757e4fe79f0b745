package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func geminiTextResponse(text string) string {
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]int{"totalTokenCount": 42},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGeminiClientWithConfig(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.0-flash-001",
		Timeout: 10 * time.Second,
	})
}

func TestGeminiComplete(t *testing.T) {
	var gotBody GeminiRequest
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash-001:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Write([]byte(geminiTextResponse("hello from gemini")))
	})

	got, err := client.Complete(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "hello from gemini" {
		t.Errorf("got %q, want %q", got, "hello from gemini")
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "say hello" {
		t.Errorf("request contents = %+v", gotBody.Contents)
	}
	if gotBody.SystemInstruction != nil {
		t.Errorf("expected no system instruction, got %+v", gotBody.SystemInstruction)
	}
}

func TestGeminiCompleteWithSystem(t *testing.T) {
	var gotBody GeminiRequest
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(geminiTextResponse("ok")))
	})

	_, err := client.CompleteWithSystem(context.Background(), "be terse", "hi")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if gotBody.SystemInstruction == nil {
		t.Fatal("system instruction not sent")
	}
	if gotBody.SystemInstruction.Parts[0].Text != "be terse" {
		t.Errorf("system instruction = %q", gotBody.SystemInstruction.Parts[0].Text)
	}
}

func TestGeminiCompleteWithSchema(t *testing.T) {
	var gotBody GeminiRequest
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(geminiTextResponse(`{"step":"plan"}`)))
	})

	schema := `{"type":"object","properties":{"step":{"type":"string"}}}`
	got, err := client.CompleteWithSchema(context.Background(), "", "classify", schema)
	if err != nil {
		t.Fatalf("CompleteWithSchema failed: %v", err)
	}
	if got != `{"step":"plan"}` {
		t.Errorf("got %q", got)
	}
	if gotBody.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q", gotBody.GenerationConfig.ResponseMimeType)
	}
	if gotBody.GenerationConfig.ResponseSchema == nil {
		t.Error("responseJsonSchema not sent")
	}
}

func TestGeminiCompleteWithSchemaInvalidSchema(t *testing.T) {
	client := NewGeminiClient("test-key")
	_, err := client.CompleteWithSchema(context.Background(), "", "x", "not json")
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestGeminiSchemaRejectedByModel(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"Unknown field responseJsonSchema","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := client.CompleteWithSchema(context.Background(), "", "x", `{"type":"object"}`)
	if !errors.Is(err, ErrSchemaNotSupported) {
		t.Errorf("expected ErrSchemaNotSupported, got %v", err)
	}
}

func TestGeminiRetryOn429(t *testing.T) {
	var attempts int32
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
			return
		}
		w.Write([]byte(geminiTextResponse("recovered")))
	})

	got, err := client.Complete(context.Background(), "retry me")
	if err != nil {
		t.Fatalf("Complete failed after retry: %v", err)
	}
	if got != "recovered" {
		t.Errorf("got %q", got)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestGeminiNoAPIKey(t *testing.T) {
	client := NewGeminiClient("")
	_, err := client.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestGeminiServerError(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	})

	_, err := client.Complete(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected 403 error, got %v", err)
	}
}

func TestGeminiStreaming(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: " + geminiTextResponse("chunk one ") + "\n\n"))
		w.Write([]byte("data: " + geminiTextResponse("chunk two") + "\n\n"))
	})

	contentChan, errorChan := client.CompleteWithStreaming(context.Background(), "", "stream it")

	var sb strings.Builder
	for chunk := range contentChan {
		sb.WriteString(chunk)
	}
	if err := <-errorChan; err != nil {
		t.Fatalf("streaming failed: %v", err)
	}
	if got := sb.String(); got != "chunk one chunk two" {
		t.Errorf("got %q", got)
	}
}

func TestGeminiSetModel(t *testing.T) {
	client := NewGeminiClient("key")
	if client.GetModel() != "gemini-2.0-flash-001" {
		t.Errorf("default model = %q", client.GetModel())
	}
	client.SetModel("gemini-2.5-pro")
	if client.GetModel() != "gemini-2.5-pro" {
		t.Errorf("model after SetModel = %q", client.GetModel())
	}
}
