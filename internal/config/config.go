package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database"`
	Model    ModelConfig    `json:"model"`
	Query    QueryConfig    `json:"query"`
	Metrics  MetricsConfig  `json:"metrics"`
	Logging  LoggingConfig  `json:"logging"`
}

// DatabaseConfig represents the relational store configuration
type DatabaseConfig struct {
	Driver string `json:"driver" env:"DB_DRIVER" envDefault:"sqlite"` // sqlite, duckdb
	Path   string `json:"path"   env:"DB_PATH"   envDefault:"~/.local/share/askdb/askdb.db"`
}

// ModelConfig represents the completion backend configuration
type ModelConfig struct {
	BaseURL           string  `json:"base_url"            env:"MODEL_BASE_URL"       envDefault:"http://localhost:8080"`
	MaxContextTokens  int     `json:"max_context_tokens"  env:"MAX_CONTEXT_TOKENS"   envDefault:"16384"`
	MaxResponseTokens int     `json:"max_response_tokens" env:"MAX_RESPONSE_TOKENS"  envDefault:"1024"`
	Temperature       float64 `json:"temperature"         env:"MODEL_TEMPERATURE"    envDefault:"0.1"`
	ReadyWaitSeconds  int     `json:"ready_wait_seconds"  env:"MODEL_READY_WAIT"     envDefault:"30"`
	RequestTimeout    int     `json:"request_timeout"     env:"MODEL_REQUEST_TIMEOUT" envDefault:"120"`
}

// QueryConfig represents query pipeline limits
type QueryConfig struct {
	MaxLength      int `json:"max_length"      env:"MAX_QUERY_LENGTH" envDefault:"1000"`
	TimeoutSeconds int `json:"timeout_seconds" env:"QUERY_TIMEOUT"    envDefault:"30"`
}

// MetricsConfig represents the in-process metrics collector settings
type MetricsConfig struct {
	Enabled   bool `json:"enabled"   env:"METRICS_ENABLED"   envDefault:"true"`
	Retention int  `json:"retention" env:"METRICS_RETENTION" envDefault:"1000"` // samples kept per metric
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`   // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stderr"` // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.local/share/askdb/logs/askdb.log"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	// Start with empty configuration (defaults will be set by env.Parse)
	config := &Config{}

	// Load from config file if it exists
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply environment variable overrides using env library (also sets defaults)
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: "ASKDB_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Apply command-line flag overrides
	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "db-driver":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Driver = str
			}
		case "model-url":
			if str, ok := value.(string); ok && str != "" {
				config.Model.BaseURL = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "timeout":
			if n, ok := value.(int); ok && n > 0 {
				config.Query.TimeoutSeconds = n
			}
		}
	}
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if s.Kind() == reflect.Bool {
			t.Set(s)
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validDrivers := map[string]bool{
		"sqlite": true, "duckdb": true,
	}
	if !validDrivers[strings.ToLower(config.Database.Driver)] {
		return fmt.Errorf("invalid database driver: %s (must be sqlite or duckdb)", config.Database.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	if config.Query.TimeoutSeconds <= 0 {
		return fmt.Errorf("query timeout must be positive: %d", config.Query.TimeoutSeconds)
	}

	if config.Query.MaxLength <= 0 {
		return fmt.Errorf("max query length must be positive: %d", config.Query.MaxLength)
	}

	if config.Model.MaxResponseTokens >= config.Model.MaxContextTokens {
		return fmt.Errorf(
			"max response tokens (%d) must be smaller than max context tokens (%d)",
			config.Model.MaxResponseTokens, config.Model.MaxContextTokens,
		)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("ASKDB_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "askdb", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Logging.File = expandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
	}
	if strings.ToLower(c.Logging.Output) == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
