// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollamaflow.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - path given on the command line
//   - ~/.ollamaflow/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ollamaflow/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollamaflow configuration.
type Config struct {
	// DefaultModel is used when a command does not name a model.
	DefaultModel string `toml:"default_model"`

	// Server configuration (Ollama endpoint and client behavior)
	Server ServerConfig `toml:"server"`

	// Chat configuration (interactive REPL)
	Chat ChatConfig `toml:"chat"`

	// History configuration (local prompt/reply log)
	History HistoryConfig `toml:"history"`

	// Output configuration (rendering and color)
	Output OutputConfig `toml:"output"`
}

// ServerConfig contains Ollama server connection settings.
type ServerConfig struct {
	// URL is the base URL of the Ollama server
	URL string `toml:"url"`
	// TimeoutSecs is the request timeout for non-streaming calls in seconds
	TimeoutSecs int `toml:"timeout_secs"`
	// StreamTimeoutSecs is the per-chunk timeout for streaming calls in seconds
	StreamTimeoutSecs int `toml:"stream_timeout_secs"`
	// KeepAlive controls how long models stay loaded (e.g. "5m", "0", "-1")
	KeepAlive string `toml:"keep_alive"`
	// SkipModelCheck disables the pre-flight check against /api/tags
	SkipModelCheck bool `toml:"skip_model_check"`
	// MaxRetries is the number of attempts for transient connection failures
	MaxRetries int `toml:"max_retries"`
	// RetryDelayMs is the delay between retry attempts in milliseconds
	RetryDelayMs int `toml:"retry_delay_ms"`
	// RateLimitRPS caps outgoing requests per second (0 = unlimited)
	RateLimitRPS float64 `toml:"rate_limit_rps"`
}

// ChatConfig contains interactive chat settings.
type ChatConfig struct {
	// System is an optional system prompt prepended to every conversation
	System string `toml:"system"`
	// ShowStats prints token counts and throughput after each reply
	ShowStats bool `toml:"show_stats"`
	// HistoryFile is the liner readline history path (empty = default)
	HistoryFile string `toml:"history_file"`
}

// HistoryConfig contains the local prompt/reply log settings.
type HistoryConfig struct {
	// Enabled controls whether prompts and replies are recorded
	Enabled bool `toml:"enabled"`
	// Path is the SQLite database path (empty = default ~/.ollamaflow/history.db)
	Path string `toml:"path"`
	// MaxEntries caps the number of stored exchanges (0 = unlimited)
	MaxEntries int `toml:"max_entries"`
	// PreviewWidth is the rune width for one-line previews in listings
	PreviewWidth int `toml:"preview_width"`
}

// OutputConfig contains rendering settings.
type OutputConfig struct {
	// Markdown renders model replies as markdown when stdout is a TTY
	Markdown bool `toml:"markdown"`
	// Color controls ANSI output: "auto", "always", "never"
	Color string `toml:"color"`
	// WrapWidth is the rendering width (0 = detect from terminal)
	WrapWidth int `toml:"wrap_width"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DefaultModel: "",

		Server: ServerConfig{
			URL:               "http://127.0.0.1:11434",
			TimeoutSecs:       30,
			StreamTimeoutSecs: 5,
			KeepAlive:         "5m",
			SkipModelCheck:    false,
			MaxRetries:        3,
			RetryDelayMs:      1000,
			RateLimitRPS:      0,
		},

		Chat: ChatConfig{
			System:    "",
			ShowStats: true,
		},

		History: HistoryConfig{
			Enabled:      true,
			MaxEntries:   1000,
			PreviewWidth: 60,
		},

		Output: OutputConfig{
			Markdown: true,
			Color:    "auto",
			WrapWidth: 0,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollamaflow configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollamaflow"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath resolves the history database path, falling back to the
// default location inside the config directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ChatHistoryPath resolves the readline history path for the chat REPL.
func (c *Config) ChatHistoryPath() (string, error) {
	if c.Chat.HistoryFile != "" {
		return c.Chat.HistoryFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chat_history"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error: defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ollamaflow configuration file\n")
	buf.WriteString("# Edit with care, or use 'ollamaflow config set'\n")
	buf.WriteString("\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "server.url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Server.URL),
			})
		}
	}

	if c.Server.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: "must be non-negative",
		})
	}
	if c.Server.StreamTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.stream_timeout_secs",
			Message: "must be non-negative",
		})
	}
	if c.Server.MaxRetries < 0 || c.Server.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "server.max_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.Server.MaxRetries),
		})
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_rps",
			Message: "must be non-negative",
		})
	}

	if c.Server.KeepAlive != "" {
		if err := validateKeepAlive(c.Server.KeepAlive); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.keep_alive",
				Message: err.Error(),
			})
		}
	}

	if c.History.MaxEntries < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.max_entries",
			Message: "must be non-negative",
		})
	}

	validColors := map[string]bool{"auto": true, "always": true, "never": true}
	if !validColors[strings.ToLower(c.Output.Color)] {
		errs = append(errs, ValidationError{
			Field:   "output.color",
			Message: fmt.Sprintf("invalid value '%s', must be one of: auto, always, never", c.Output.Color),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateKeepAlive accepts Go durations ("5m", "1h30m"), bare integers
// (seconds), and -1 (keep loaded forever).
func validateKeepAlive(s string) error {
	if _, err := time.ParseDuration(s); err == nil {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= -1 {
		return nil
	}
	return fmt.Errorf("invalid keep_alive '%s', want a duration like '5m' or seconds", s)
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if c.Server.StreamTimeoutSecs == 0 {
		c.Server.StreamTimeoutSecs = defaults.Server.StreamTimeoutSecs
	}
	if c.Server.KeepAlive == "" {
		c.Server.KeepAlive = defaults.Server.KeepAlive
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = defaults.Server.MaxRetries
	}
	if c.Server.RetryDelayMs == 0 {
		c.Server.RetryDelayMs = defaults.Server.RetryDelayMs
	}
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = defaults.History.MaxEntries
	}
	if c.History.PreviewWidth == 0 {
		c.History.PreviewWidth = defaults.History.PreviewWidth
	}
	if c.Output.Color == "" {
		c.Output.Color = defaults.Output.Color
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMAFLOW_MODEL: overrides default_model
//   - OLLAMAFLOW_URL / OLLAMA_HOST: overrides server.url
//   - OLLAMAFLOW_KEEP_ALIVE: overrides server.keep_alive
//   - OLLAMAFLOW_SKIP_MODEL_CHECK: "1" or "true" disables the pre-flight check
//   - OLLAMAFLOW_NO_HISTORY: "1" or "true" disables prompt recording
//   - NO_COLOR: disables ANSI output (https://no-color.org)
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("OLLAMAFLOW_MODEL"); model != "" {
		c.DefaultModel = model
	}

	if u := os.Getenv("OLLAMAFLOW_URL"); u != "" {
		c.Server.URL = u
	} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
		// OLLAMA_HOST may be bare host:port, matching the upstream CLI
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Server.URL = host
	}

	if ka := os.Getenv("OLLAMAFLOW_KEEP_ALIVE"); ka != "" {
		c.Server.KeepAlive = ka
	}

	if skip := os.Getenv("OLLAMAFLOW_SKIP_MODEL_CHECK"); skip != "" {
		c.Server.SkipModelCheck = skip == "1" || strings.ToLower(skip) == "true"
	}

	if noHist := os.Getenv("OLLAMAFLOW_NO_HISTORY"); noHist != "" {
		if noHist == "1" || strings.ToLower(noHist) == "true" {
			c.History.Enabled = false
		}
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Output.Color = "never"
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.url").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "server.url").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion. String input is parsed for numeric and boolean fields so
// 'config set' can take everything from the command line.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"default_model",
		"server.url",
		"server.timeout_secs",
		"server.stream_timeout_secs",
		"server.keep_alive",
		"server.skip_model_check",
		"server.max_retries",
		"server.retry_delay_ms",
		"server.rate_limit_rps",
		"chat.system",
		"chat.show_stats",
		"chat.history_file",
		"history.enabled",
		"history.path",
		"history.max_entries",
		"history.preview_width",
		"output.markdown",
		"output.color",
		"output.wrap_width",
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
