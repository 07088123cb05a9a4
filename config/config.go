package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the file configuration. Pointer fields distinguish
// "unset" from the zero value so a local file can override a global one
// with false or 0.
type Config struct {
	Repository    string  `yaml:"repository,omitempty"`
	DaysStale     *int    `yaml:"days_stale,omitempty"`
	OnlyWeekdays  *bool   `yaml:"only_weekdays,omitempty"`
	IgnoreColumns []int64 `yaml:"ignore_columns,omitempty"`
	DefaultFormat string  `yaml:"default_format,omitempty"`
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".stale"
	}
	return filepath.Join(configDir, "stale")
}

// ConfigPath returns the path to the global config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".stale.yaml"
}

// Load loads the global config from the user config directory, then merges
// any local .stale.yaml on top (local values take precedence).
func Load() (*Config, error) {
	return LoadFrom(ConfigPath(), LocalConfigPath())
}

// LoadFrom is Load with explicit paths. Missing files are skipped.
func LoadFrom(globalPath, localPath string) (*Config, error) {
	cfg := &Config{}

	global, err := readFile(globalPath)
	if err != nil {
		return nil, fmt.Errorf("global config: %w", err)
	}
	if global != nil {
		cfg = global
	}

	local, err := readFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("local config: %w", err)
	}
	if local != nil {
		cfg = mergeConfig(cfg, local)
	}

	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "table"
	}

	return cfg, nil
}

// readFile parses path, returning nil when it does not exist.
func readFile(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := *global

	if local.Repository != "" {
		result.Repository = local.Repository
	}
	if local.DaysStale != nil {
		result.DaysStale = local.DaysStale
	}
	if local.OnlyWeekdays != nil {
		result.OnlyWeekdays = local.OnlyWeekdays
	}
	// lists are replaced, not appended
	if len(local.IgnoreColumns) > 0 {
		result.IgnoreColumns = local.IgnoreColumns
	}
	if local.DefaultFormat != "" {
		result.DefaultFormat = local.DefaultFormat
	}

	return &result
}

// Save saves the configuration to the global config file
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return SaveTo(ConfigPath(), string(data))
}

// GetGitHubToken returns the credential from the environment. The Actions
// input INPUT_TOKEN wins over GITHUB_TOKEN. Tokens are never read from files.
func (c *Config) GetGitHubToken() string {
	if token := os.Getenv("INPUT_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("GITHUB_TOKEN")
}

// DefaultConfig returns a config with every key populated, for use as a template.
func DefaultConfig() *Config {
	days := 30
	weekdays := false
	return &Config{
		Repository:    "owner/name",
		DaysStale:     &days,
		OnlyWeekdays:  &weekdays,
		IgnoreColumns: []int64{},
		DefaultFormat: "table",
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# stale configuration file
# Flags and environment variables override these values.
# The token is only read from INPUT_TOKEN or GITHUB_TOKEN.

# Repository to check (owner/name)
# repository: owner/name

# Days without activity before an issue is stale (required)
days_stale: 30

# Count only Monday to Friday
only_weekdays: false

# Project column IDs whose issues are never reminded (optional)
# ignore_columns:
#   - 1234567

# Output format: table, json or markdown
default_format: table
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
