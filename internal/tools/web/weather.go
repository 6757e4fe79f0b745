package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tinker/internal/logging"
	"tinker/internal/tools"
)

const defaultWeatherBaseURL = "https://wttr.in"

// GetWeatherTool returns a tool that reports current weather for a city
// via wttr.in. baseURL overrides the service endpoint when non-empty.
func GetWeatherTool(client *http.Client, baseURL string) *tools.Tool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultWeatherBaseURL
	}
	return &tools.Tool{
		Name:        "get_weather",
		Description: "Get the current weather for a city",
		Category:    tools.CategoryGeneral,
		Priority:    40,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeGetWeather(ctx, args, client, baseURL)
		},
		Schema: tools.ToolSchema{
			Required: []string{"city"},
			Properties: map[string]tools.Property{
				"city": {
					Type:        "string",
					Description: "The city name",
				},
			},
		},
	}
}

func executeGetWeather(ctx context.Context, args map[string]any, client *http.Client, baseURL string) (string, error) {
	city, _ := args["city"].(string)
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}

	endpoint := fmt.Sprintf("%s/%s?format=%s", baseURL, url.PathEscape(city), url.QueryEscape("%C+%t"))
	logging.ToolsDebug("get_weather: city=%s", city)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather lookup failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	report := strings.TrimSpace(string(body))
	logging.Tools("get_weather completed: %s -> %s", city, report)
	return fmt.Sprintf("The weather in %s is %s.", city, report), nil
}

// RegisterAll registers the web tools with the given registry.
func RegisterAll(registry *tools.Registry) error {
	allTools := []*tools.Tool{
		FetchURLTool(nil),
		GetWeatherTool(nil, ""),
	}
	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
