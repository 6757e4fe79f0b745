package main

import (
	"errors"
	"fmt"
	"strings"

	"tinker/internal/config"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// initCmd walks through provider setup and writes .tinker/config.yaml.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure tinker for this workspace",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	provider := cfg.LLM.Provider
	sel := huh.NewSelect[string]().
		Title("LLM provider").
		Options(
			huh.NewOption("Gemini (Google)", "gemini"),
			huh.NewOption("OpenAI", "openai"),
		).
		Value(&provider).
		WithTheme(huh.ThemeCharm())
	if err := sel.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	apiKey := cfg.LLM.APIKey
	keyPrompt := huh.NewInput().
		Title("API key").
		Description("Leave empty to use GOOGLE_API_KEY / GEMINI_API_KEY / OPENAI_API_KEY from the environment.").
		EchoMode(huh.EchoModePassword).
		Value(&apiKey).
		WithTheme(huh.ThemeCharm())
	if err := keyPrompt.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	model := cfg.LLM.Model
	if provider != cfg.LLM.Provider {
		model = defaultModelFor(provider)
	}
	modelPrompt := huh.NewInput().
		Title("Model").
		Value(&model).
		WithTheme(huh.ThemeCharm())
	if err := modelPrompt.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	cfg.LLM.Provider = provider
	cfg.LLM.APIKey = strings.TrimSpace(apiKey)
	if m := strings.TrimSpace(model); m != "" {
		cfg.LLM.Model = m
	}
	if provider == "openai" {
		cfg.LLM.BaseURL = ""
	}

	if err := cfg.Save(workspace); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", config.Path(workspace))
	return nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	default:
		return config.DefaultConfig().LLM.Model
	}
}
