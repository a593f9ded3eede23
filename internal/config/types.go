// Package config provides configuration loading and management for stlcpilot.
//
// Configuration is loaded using Viper, supporting YAML (or JSON) config files
// and environment variable overrides. The defaults work out of the box: every
// stage has an instruction, the generator points at OpenAI, and sessions are
// stored as YAML files in the working directory.
//
// Key types:
//   - [Config] is the root configuration container
//   - [Loader] handles Viper-based loading
//   - [StageConfig] holds the closing instruction for one stage's prompt
//   - [GeneratorConfig] selects and tunes the language model backend
//
// Configuration priority (highest to lowest):
//  1. Environment variables (STLCPILOT_ prefix, "." replaced by "_")
//  2. Config file specified by STLCPILOT_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/stlcpilot/config.yaml
//     - macOS: ~/Library/Application Support/stlcpilot/config.yaml
//     - Windows: %APPDATA%\stlcpilot\config.yaml
//  4. ./config/stlcpilot.yaml
//  5. ./stlcpilot.yaml
//  6. [DefaultConfig] defaults
package config

import "time"

// Config represents the root configuration structure.
type Config struct {
	// Stages maps stage names (e.g. "test-planning") to their settings.
	Stages map[string]StageConfig `mapstructure:"stages"`

	// Generator selects the language model backend.
	Generator GeneratorConfig `mapstructure:"generator"`

	// Claude contains Claude CLI settings, used when Generator.Provider is "claude".
	Claude ClaudeConfig `mapstructure:"claude"`

	// Store selects where sessions are persisted.
	Store StoreConfig `mapstructure:"store"`

	// Export configures where artifacts are written.
	Export ExportConfig `mapstructure:"export"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// StageConfig configures the content-production step of one stage.
type StageConfig struct {
	// Instruction is the Go template appended to the stage prompt.
	// Example: "Based on the above, generate a detailed test plan for {{.ProjectName}}."
	Instruction string `mapstructure:"instruction"`
}

// GeneratorConfig selects and tunes the text generator.
type GeneratorConfig struct {
	// Provider is one of openai, groq, gemini, ollama or claude.
	Provider string `mapstructure:"provider" validate:"oneof=openai groq gemini ollama claude"`

	// Model is the model name. Empty uses the provider default.
	Model string `mapstructure:"model"`

	// BaseURL overrides the provider's OpenAI-compatible endpoint.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`

	// APIKey overrides the provider's API key environment variable
	// (OPENAI_API_KEY, GROQ_API_KEY or GEMINI_API_KEY).
	APIKey string `mapstructure:"api_key"`

	// SystemPrompt is sent ahead of every stage prompt.
	SystemPrompt string `mapstructure:"system_prompt"`

	// Temperature is the sampling temperature.
	Temperature float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`

	// Timeout bounds a single generation call. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ClaudeConfig contains Claude CLI configuration.
type ClaudeConfig struct {
	// OutputFormat is passed to --output-format. Should be "stream-json".
	OutputFormat string `mapstructure:"output_format"`

	// BinaryPath is the path to the Claude CLI binary.
	// Can be overridden with the STLCPILOT_CLAUDE_PATH environment variable.
	BinaryPath string `mapstructure:"binary_path"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	// Backend is "file" (one YAML file per session) or "badger".
	Backend string `mapstructure:"backend" validate:"oneof=file badger"`

	// Path is the sessions directory or database directory.
	Path string `mapstructure:"path" validate:"required"`
}

// ExportConfig configures artifact export.
type ExportConfig struct {
	// Dir receives one subdirectory of markdown files per session.
	Dir string `mapstructure:"dir" validate:"required"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// PreviewLines is the number of draft lines shown before truncation.
	// Zero shows the whole draft.
	PreviewLines int `mapstructure:"preview_lines" validate:"gte=0"`

	// PreviewWidth is the maximum width of each preview line.
	PreviewWidth int `mapstructure:"preview_width" validate:"gte=0"`
}

// DefaultConfig returns a new [Config] with working defaults.
//
// The stage instructions reproduce the classic STLC assistant prompts, one per
// content-producing stage.
func DefaultConfig() *Config {
	return &Config{
		Stages: map[string]StageConfig{
			"test-planning": {
				Instruction: "Based on the above, generate a detailed test plan for this project.",
			},
			"test-case-development": {
				Instruction: "Based on the above, generate detailed test cases covering every requirement for this project.",
			},
			"test-environment-setup": {
				Instruction: "Based on the above, generate a recommended test environment setup for this project.",
			},
			"test-execution": {
				Instruction: "Based on the above, generate a test execution strategy or checklist for this project.",
			},
			"test-closure": {
				Instruction: "Based on the above, generate a test closure summary or report for this project.",
			},
		},
		Generator: GeneratorConfig{
			Provider:     "openai",
			SystemPrompt: "You are a senior QA engineer helping a team through the software testing life cycle.",
			Temperature:  0.2,
			Timeout:      2 * time.Minute,
		},
		Claude: ClaudeConfig{
			OutputFormat: "stream-json",
			BinaryPath:   "claude",
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    ".stlcpilot/sessions",
		},
		Export: ExportConfig{
			Dir: "artifacts",
		},
		Output: OutputConfig{
			PreviewLines: 20,
			PreviewWidth: 100,
		},
		LogLevel: "info",
	}
}

// PromptData contains data for stage instruction template expansion.
//
// Fields are accessible in templates using {{.FieldName}} syntax.
type PromptData struct {
	// ProjectName is the session's project. Access with {{.ProjectName}}.
	ProjectName string

	// Stage is the human-readable stage label, e.g. "Test Planning".
	Stage string
}
