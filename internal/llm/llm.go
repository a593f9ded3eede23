// Package llm provides the production text generators.
//
// Every generator satisfies workflow.Generator. [New] picks one from
// configuration:
//   - openai, groq, gemini, ollama: [OpenAI] against the provider's
//     OpenAI-compatible chat completions endpoint
//   - claude: [Claude], which runs the Claude CLI
package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"stlcpilot/internal/claude"
	"stlcpilot/internal/config"
	"stlcpilot/internal/workflow"
)

// Provider describes an OpenAI-compatible endpoint.
type Provider struct {
	Name         string
	BaseURL      string
	APIKeyEnv    string
	DefaultModel string
}

// Providers lists the OpenAI-compatible providers by name.
var Providers = map[string]Provider{
	"openai": {
		Name:         "openai",
		BaseURL:      "https://api.openai.com/v1",
		APIKeyEnv:    "OPENAI_API_KEY",
		DefaultModel: "gpt-4o-mini",
	},
	"groq": {
		Name:         "groq",
		BaseURL:      "https://api.groq.com/openai/v1",
		APIKeyEnv:    "GROQ_API_KEY",
		DefaultModel: "llama-3.3-70b-versatile",
	},
	"gemini": {
		Name:         "gemini",
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
		APIKeyEnv:    "GEMINI_API_KEY",
		DefaultModel: "gemini-2.0-flash",
	},
	"ollama": {
		Name:         "ollama",
		BaseURL:      "http://localhost:11434/v1",
		DefaultModel: "llama3.2",
	},
}

// New builds the generator selected by cfg.Generator.Provider.
func New(cfg *config.Config, logger *slog.Logger) (workflow.Generator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gc := cfg.Generator

	if gc.Provider == "claude" {
		exec := claude.NewExecutor(claude.ExecutorConfig{
			BinaryPath:   cfg.Claude.BinaryPath,
			OutputFormat: cfg.Claude.OutputFormat,
			Model:        gc.Model,
			SystemPrompt: gc.SystemPrompt,
		}, logger)
		return NewClaude(exec, logger), nil
	}

	p, ok := Providers[gc.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown generator provider: %s", gc.Provider)
	}

	apiKey := gc.APIKey
	if apiKey == "" && p.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
		if apiKey == "" {
			return nil, fmt.Errorf("%s API key not set: configure generator.api_key or %s", p.Name, p.APIKeyEnv)
		}
	}
	if apiKey == "" {
		// Ollama ignores the key but the client requires one.
		apiKey = p.Name
	}

	baseURL := gc.BaseURL
	if baseURL == "" {
		baseURL = p.BaseURL
	}
	model := gc.Model
	if model == "" {
		model = p.DefaultModel
	}

	return NewOpenAI(OpenAIConfig{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		SystemPrompt: gc.SystemPrompt,
		Temperature:  gc.Temperature,
	}, logger), nil
}
