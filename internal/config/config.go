// Package config loads veriq runtime settings and platform credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project settings directory.
const Dir = ".veriq"

// Config represents the runtime configuration from .veriq/config.yaml.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Validate  ValidateConfig  `yaml:"validate"`
	History   HistoryConfig   `yaml:"history"`
	Publish   PublishConfig   `yaml:"publish"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// ValidateConfig defines design validation defaults.
type ValidateConfig struct {
	AllowUnknownFields bool `yaml:"allow_unknown_fields"`
}

// HistoryConfig defines run history settings.
type HistoryConfig struct {
	Record  bool   `yaml:"record"` // record every verify run
	Path    string `yaml:"path"`
	MaxRuns int    `yaml:"max_runs"` // 0 keeps every run
}

// InspectorConfig defines the history API server settings.
type InspectorConfig struct {
	Addr string `yaml:"addr"`
}

// PublishConfig defines how runs are reported as issues.
type PublishConfig struct {
	Labels       []string `yaml:"labels"`
	OnlyFailures bool     `yaml:"only_failures"`
}

// PlatformConfig represents platform credentials from .veriq/platforms.yaml.
type PlatformConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig holds GitHub platform settings.
type GitHubConfig struct {
	Token       string `yaml:"token"`
	DefaultRepo string `yaml:"default_repo"` // owner/name
	BaseURL     string `yaml:"base_url"`     // GitHub Enterprise API endpoint
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		History: HistoryConfig{
			Path:    filepath.Join(Dir, "history.db"),
			MaxRuns: 500,
		},
		Publish: PublishConfig{
			Labels:       []string{"veriq"},
			OnlyFailures: true,
		},
		Inspector: InspectorConfig{
			Addr: "127.0.0.1:4200",
		},
	}
}

// ConfigPath returns the config file path under root.
func ConfigPath(root string) string {
	return filepath.Join(root, Dir, "config.yaml")
}

// PlatformsPath returns the platform credentials path under root.
func PlatformsPath(root string) string {
	return filepath.Join(root, Dir, "platforms.yaml")
}

// LoadConfig reads and parses a runtime config YAML file.
// Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return cfg, fmt.Errorf("config %s: unknown log_level %q", path, cfg.LogLevel)
	}
	if cfg.History.MaxRuns < 0 {
		return cfg, fmt.Errorf("config %s: history.max_runs must not be negative", path)
	}

	return cfg, nil
}

// LoadPlatformConfig reads and parses a platform credentials YAML file.
// Performs environment variable interpolation on string values.
func LoadPlatformConfig(path string) (PlatformConfig, error) {
	var cfg PlatformConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read platform config %s: %w", path, err)
	}

	// Interpolate environment variables before parsing.
	interpolated := interpolateEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse platform config %s: %w", path, err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
