// Package web provides network research tools: page fetching and the
// weather lookup.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"tinker/internal/logging"
	"tinker/internal/tools"
)

const maxFetchBytes = 512 * 1024

// FetchURLTool returns a tool that fetches a URL and extracts readable text.
func FetchURLTool(client *http.Client) *tools.Tool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &tools.Tool{
		Name:        "fetch_url",
		Description: "Fetch a web page and return its readable text content",
		Category:    tools.CategoryResearch,
		Priority:    80,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeFetchURL(ctx, args, client)
		},
		Schema: tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "The URL to fetch (http or https)",
				},
			},
		},
	}
}

func executeFetchURL(ctx context.Context, args map[string]any, client *http.Client) (string, error) {
	rawURL, _ := args["url"].(string)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	logging.ToolsDebug("fetch_url: %s", rawURL)

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", "tinker/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	if strings.Contains(contentType, "text/html") {
		text = extractText(string(body))
	} else {
		text = string(body)
	}

	text = strings.TrimSpace(text)
	logging.Tools("fetch_url completed: %s (%d chars)", rawURL, len(text))
	if text == "" {
		return "(no readable content)", nil
	}
	return text, nil
}

// extractText walks the HTML tree collecting text nodes, skipping
// script/style/head subtrees and collapsing whitespace runs.
func extractText(htmlText string) string {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return htmlText
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sb.String()
}
