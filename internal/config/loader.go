package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "STLCPILOT"

// Loader loads [Config] through Viper.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a [Loader] with defaults and environment overrides wired.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())
	_ = v.BindEnv("claude.binary_path", EnvPrefix+"_CLAUDE_PATH")

	return &Loader{v: v}
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
// Stage instructions are merged at unmarshal time instead.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("generator.provider", d.Generator.Provider)
	v.SetDefault("generator.model", d.Generator.Model)
	v.SetDefault("generator.base_url", d.Generator.BaseURL)
	v.SetDefault("generator.api_key", d.Generator.APIKey)
	v.SetDefault("generator.system_prompt", d.Generator.SystemPrompt)
	v.SetDefault("generator.temperature", d.Generator.Temperature)
	v.SetDefault("generator.timeout", d.Generator.Timeout)
	v.SetDefault("claude.output_format", d.Claude.OutputFormat)
	v.SetDefault("claude.binary_path", d.Claude.BinaryPath)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("output.preview_lines", d.Output.PreviewLines)
	v.SetDefault("output.preview_width", d.Output.PreviewWidth)
	v.SetDefault("log_level", d.LogLevel)
}

// Viper exposes the underlying instance so the CLI can bind flags to keys.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load discovers the config file, applies environment overrides and returns
// the merged configuration. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if path := findConfigFile(); path != "" {
		return l.LoadFromFile(path)
	}
	return l.unmarshal()
}

// LoadFromFile loads configuration from path. The format is chosen by the
// file extension.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_PATH"); p != "" {
		return p
	}

	candidates := []string{
		filepath.Join("config", "stlcpilot.yaml"),
		"stlcpilot.yaml",
	}
	if p, err := DefaultConfigPath(); err == nil {
		candidates = append([]string{p}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ConfigDir returns the platform config directory for stlcpilot.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "stlcpilot"), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the user config directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// WriteDefaults writes [DefaultConfig] as YAML to path. An existing file is
// only replaced when overwrite is set.
func WriteDefaults(path string, overwrite bool) error {
	v := viper.New()
	d := DefaultConfig()
	setDefaults(v, d)
	stages := make(map[string]any, len(d.Stages))
	for name, sc := range d.Stages {
		stages[name] = map[string]any{"instruction": sc.Instruction}
	}
	v.Set("stages", stages)
	v.SetConfigType("yaml")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	write := v.SafeWriteConfigAs
	if overwrite {
		write = v.WriteConfigAs
	}
	if err := write(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return fmt.Errorf("config file %s already exists: %w", path, os.ErrExist)
		}
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// InitUserConfig writes the defaults to [DefaultConfigPath], creating the
// user config directory first, and returns the path written.
func InitUserConfig(overwrite bool) (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return "", err
	}
	return path, WriteDefaults(path, overwrite)
}
