package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tinker/internal/tools"
)

func TestFetchURLExtractsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>ignored</title><style>body{}</style></head>
<body><h1>Heading</h1><script>var x = 1;</script><p>Paragraph text.</p></body></html>`))
	}))
	defer server.Close()

	tool := FetchURLTool(server.Client())
	got, err := tool.Execute(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("fetch_url failed: %v", err)
	}
	if !strings.Contains(got, "Heading") || !strings.Contains(got, "Paragraph text.") {
		t.Errorf("text = %q", got)
	}
	if strings.Contains(got, "var x") || strings.Contains(got, "ignored") || strings.Contains(got, "body{}") {
		t.Errorf("script/head content leaked: %q", got)
	}
}

func TestFetchURLPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("raw body"))
	}))
	defer server.Close()

	tool := FetchURLTool(server.Client())
	got, err := tool.Execute(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("fetch_url failed: %v", err)
	}
	if got != "raw body" {
		t.Errorf("text = %q", got)
	}
}

func TestFetchURLNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tool := FetchURLTool(server.Client())
	_, err := tool.Execute(context.Background(), map[string]any{"url": server.URL})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
}

func TestFetchURLEmptyArg(t *testing.T) {
	tool := FetchURLTool(nil)
	if _, err := tool.Execute(context.Background(), map[string]any{"url": " "}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestGetWeather(t *testing.T) {
	var gotPath, gotFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("format")
		w.Write([]byte("Partly cloudy +11°C\n"))
	}))
	defer server.Close()

	tool := GetWeatherTool(server.Client(), server.URL)
	got, err := tool.Execute(context.Background(), map[string]any{"city": "Oslo"})
	if err != nil {
		t.Fatalf("get_weather failed: %v", err)
	}
	if got != "The weather in Oslo is Partly cloudy +11°C." {
		t.Errorf("report = %q", got)
	}
	if gotPath != "/Oslo" {
		t.Errorf("path = %q", gotPath)
	}
	if gotFormat != "%C+%t" {
		t.Errorf("format = %q", gotFormat)
	}
}

func TestGetWeatherServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tool := GetWeatherTool(server.Client(), server.URL)
	_, err := tool.Execute(context.Background(), map[string]any{"city": "Oslo"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected 503 error, got %v", err)
	}
}

func TestRegisterAll(t *testing.T) {
	r := tools.NewRegistry()
	if err := RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	if !r.Has("fetch_url") || !r.Has("get_weather") {
		t.Errorf("tools not registered: %v", r.Names())
	}
}
