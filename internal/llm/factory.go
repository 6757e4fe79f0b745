package llm

import (
	"fmt"
	"strings"

	"tinker/internal/config"
	"tinker/internal/logging"
)

// NewClientFromConfig builds the provider client selected in the config.
// Supported providers: gemini, openai.
func NewClientFromConfig(cfg *config.Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if provider == "" {
		provider = "gemini"
	}

	logging.BootDebug("[LLM Factory] provider=%s model=%s", provider, cfg.LLM.Model)

	switch provider {
	case "gemini", "google":
		gc := DefaultGeminiConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			gc.Model = cfg.LLM.Model
		}
		if cfg.LLM.BaseURL != "" {
			gc.BaseURL = cfg.LLM.BaseURL
		}
		gc.Timeout = cfg.LLMTimeout()
		return NewGeminiClientWithConfig(gc), nil

	case "openai":
		baseURL := cfg.LLM.BaseURL
		// Default base URL points at the Gemini endpoint; openai gets its own.
		if strings.Contains(baseURL, "generativelanguage.googleapis.com") {
			baseURL = ""
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: baseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		}), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
