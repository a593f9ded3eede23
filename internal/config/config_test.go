package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlcpilot/internal/stage"
)

// isolate points config discovery at empty directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("STLCPILOT_CONFIG_PATH", "")
	t.Chdir(t.TempDir())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	for _, s := range []stage.Stage{
		stage.TestPlanning,
		stage.TestCaseDevelopment,
		stage.TestEnvironmentSetup,
		stage.TestExecution,
		stage.TestClosure,
	} {
		assert.Contains(t, cfg.Stages, string(s))
	}
	assert.NotContains(t, cfg.Stages, string(stage.RequirementAnalysis))

	assert.Equal(t, "openai", cfg.Generator.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Generator.Timeout)
	assert.Equal(t, "stream-json", cfg.Claude.OutputFormat)
	assert.Equal(t, "claude", cfg.Claude.BinaryPath)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "artifacts", cfg.Export.Dir)
	assert.Equal(t, 20, cfg.Output.PreviewLines)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_GetInstruction(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		stage   stage.Stage
		want    string
		wantErr bool
	}{
		{
			name:  "test planning",
			stage: stage.TestPlanning,
			want:  "Based on the above, generate a detailed test plan for this project.",
		},
		{
			name:  "test closure",
			stage: stage.TestClosure,
			want:  "Based on the above, generate a test closure summary or report for this project.",
		},
		{
			name:    "approval-only stage",
			stage:   stage.RequirementAnalysis,
			wantErr: true,
		},
		{
			name:    "unknown stage",
			stage:   stage.Stage("deployment"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.GetInstruction(tt.stage, "Checkout")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_GetInstruction_Template(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages["test-planning"] = StageConfig{Instruction: "Write the {{.Stage}} for {{.ProjectName}}."}

	got, err := cfg.GetInstruction(stage.TestPlanning, "Checkout")

	require.NoError(t, err)
	assert.Equal(t, "Write the Test Planning for Checkout.", got)
}

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     PromptData
		want     string
		wantErr  bool
	}{
		{
			name:     "simple substitution",
			template: "Project: {{.ProjectName}}",
			data:     PromptData{ProjectName: "Checkout"},
			want:     "Project: Checkout",
		},
		{
			name:     "multiple substitutions",
			template: "{{.ProjectName}} / {{.Stage}}",
			data:     PromptData{ProjectName: "abc", Stage: "Test Closure"},
			want:     "abc / Test Closure",
		},
		{
			name:     "no substitution",
			template: "Static text",
			data:     PromptData{ProjectName: "ignored"},
			want:     "Static text",
		},
		{
			name:     "invalid template",
			template: "{{.Invalid",
			wantErr:  true,
		},
		{
			name:     "unknown field",
			template: "{{.Requirements}}",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExpandTemplate(tt.template, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.Viper())
}

func TestLoader_LoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	configContent := `
stages:
  test-planning:
    instruction: "Plan {{.ProjectName}} tersely."
generator:
  provider: groq
  model: llama-3.3-70b-versatile
  timeout: 45s
claude:
  binary_path: /custom/path/claude
store:
  backend: badger
output:
  preview_lines: 50
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := NewLoader().LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "Plan {{.ProjectName}} tersely.", cfg.Stages["test-planning"].Instruction)
	// Stages not in the file keep their defaults.
	assert.Contains(t, cfg.Stages["test-closure"].Instruction, "test closure summary")
	assert.Equal(t, "groq", cfg.Generator.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Generator.Model)
	assert.Equal(t, 45*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, "/custom/path/claude", cfg.Claude.BinaryPath)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, ".stlcpilot/sessions", cfg.Store.Path)
	assert.Equal(t, 50, cfg.Output.PreviewLines)
}

func TestLoader_LoadFromFile_NonExistent(t *testing.T) {
	_, err := NewLoader().LoadFromFile("/nonexistent/path/config.yaml")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoader_LoadFromFile_InvalidStructure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidContent := `
stages:
  - this is a list, not a map
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidContent), 0644))

	_, err := NewLoader().LoadFromFile(configPath)

	assert.Error(t, err)
}

func TestLoader_LoadFromFile_JSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	jsonContent := `{"claude": {"binary_path": "/json/path/claude"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(jsonContent), 0644))

	cfg, err := NewLoader().LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "/json/path/claude", cfg.Claude.BinaryPath)
}

func TestLoader_Load_DefaultsWithNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_Load_LocalFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("stlcpilot.yaml", []byte("export:\n  dir: out\n"), 0644))

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Export.Dir)
}

func TestLoader_Load_WithConfigPathEnv(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "custom-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("claude:\n  binary_path: /from/env/path/claude\n"), 0644))
	t.Setenv("STLCPILOT_CONFIG_PATH", configPath)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "/from/env/path/claude", cfg.Claude.BinaryPath)
}

func TestLoader_Load_EnvOverridesTakePrecedence(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("claude:\n  binary_path: /from/file/claude\ngenerator:\n  provider: gemini\n"), 0644))
	t.Setenv("STLCPILOT_CONFIG_PATH", configPath)
	t.Setenv("STLCPILOT_CLAUDE_PATH", "/from/env/override/claude")
	t.Setenv("STLCPILOT_GENERATOR_PROVIDER", "ollama")
	t.Setenv("STLCPILOT_GENERATOR_TIMEOUT", "10s")

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "/from/env/override/claude", cfg.Claude.BinaryPath)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, 10*time.Second, cfg.Generator.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Generator.Provider = "mystery" },
			wantErr: "generator.provider",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: "store.backend",
		},
		{
			name:    "bad base url",
			mutate:  func(c *Config) { c.Generator.BaseURL = "not a url" },
			wantErr: "generator.baseurl",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Generator.Temperature = 3 },
			wantErr: "generator.temperature",
		},
		{
			name:    "unknown stage key",
			mutate:  func(c *Config) { c.Stages["deployment"] = StageConfig{Instruction: "x"} },
			wantErr: "stages.deployment: unknown stage",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "loglevel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "stlcpilot"), configDir)

	configPath, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "stlcpilot", "config.yaml"), configPath)
}

func TestEnsureConfigDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(base, "stlcpilot"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteDefaults_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "stlcpilot.yaml")

	require.NoError(t, WriteDefaults(path, false))

	cfg, err := NewLoader().LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestWriteDefaults_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stlcpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0644))

	err := WriteDefaults(path, false)
	require.ErrorIs(t, err, os.ErrExist)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "log_level: debug\n", string(data))

	require.NoError(t, WriteDefaults(path, true))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test-planning")
}

func TestInitUserConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	path, err := InitUserConfig(false)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "stlcpilot", "config.yaml"), path)
	assert.FileExists(t, path)
}
