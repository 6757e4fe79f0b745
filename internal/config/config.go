// Package config loads and persists tinker configuration.
// Config lives at .tinker/config.yaml in the workspace; fields can be
// overridden by environment variables at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tinker configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Memory configuration
	Memory MemoryConfig `yaml:"memory"`

	// Agent loop settings
	Agent AgentConfig `yaml:"agent"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine used for memory recall.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // genai, local
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// MemoryConfig configures persistent memory.
type MemoryConfig struct {
	DatabasePath string  `yaml:"database_path"`
	RecallLimit  int     `yaml:"recall_limit"`
	MinScore     float64 `yaml:"min_score"`
	HistoryLimit int     `yaml:"history_limit"`
}

// AgentConfig configures the step loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// ExecutionConfig configures tool execution.
type ExecutionConfig struct {
	// Default timeout for shell commands
	CommandTimeout string `yaml:"command_timeout"`

	// Maximum bytes of tool output fed back to the model
	OutputLimit int `yaml:"output_limit"`

	// Working directory override (default: workspace)
	WorkingDirectory string `yaml:"working_directory"`
}

// LoggingConfig configures category logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "tinker",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash-001",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider: "genai",
			Model:    "gemini-embedding-001",
		},

		Memory: MemoryConfig{
			DatabasePath: ".tinker/memory.db",
			RecallLimit:  5,
			MinScore:     0.35,
			HistoryLimit: 20,
		},

		Agent: AgentConfig{
			MaxIterations: 16,
		},

		Execution: ExecutionConfig{
			CommandTimeout: "60s",
			OutputLimit:    50000,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".tinker", "config.yaml")
}

// Load reads config from the workspace, falling back to defaults, and then
// applies environment overrides. A missing config file is not an error.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to the workspace, creating .tinker/ if needed.
func (c *Config) Save(workspace string) error {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variables on top of file values.
// Precedence: TINKER_* > provider-specific keys > file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TINKER_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("TINKER_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("TINKER_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
				c.LLM.APIKey = v
			} else {
				c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
			}
		}
	}

	if c.Embedding.APIKey == "" {
		if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
			c.Embedding.APIKey = v
		} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.Embedding.APIKey = v
		} else if c.LLM.Provider == "gemini" {
			c.Embedding.APIKey = c.LLM.APIKey
		}
	}

	if v := os.Getenv("TINKER_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
		if c.Logging.Level == "" {
			c.Logging.Level = "debug"
		}
	}
}

// applyDefaults fills zero values that a hand-edited config may have dropped.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.LLM.Provider == "" {
		c.LLM.Provider = def.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = def.LLM.Timeout
	}
	if c.Memory.DatabasePath == "" {
		c.Memory.DatabasePath = def.Memory.DatabasePath
	}
	if c.Memory.RecallLimit <= 0 {
		c.Memory.RecallLimit = def.Memory.RecallLimit
	}
	if c.Memory.MinScore <= 0 {
		c.Memory.MinScore = def.Memory.MinScore
	}
	if c.Memory.HistoryLimit <= 0 {
		c.Memory.HistoryLimit = def.Memory.HistoryLimit
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = def.Agent.MaxIterations
	}
	if c.Execution.CommandTimeout == "" {
		c.Execution.CommandTimeout = def.Execution.CommandTimeout
	}
	if c.Execution.OutputLimit <= 0 {
		c.Execution.OutputLimit = def.Execution.OutputLimit
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// LLMTimeout parses the LLM timeout, defaulting to 120s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// CommandTimeout parses the shell command timeout, defaulting to 60s.
func (c *Config) CommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.CommandTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// DatabasePath resolves the memory database path against the workspace.
func (c *Config) DatabasePath(workspace string) string {
	if filepath.IsAbs(c.Memory.DatabasePath) {
		return c.Memory.DatabasePath
	}
	return filepath.Join(workspace, c.Memory.DatabasePath)
}
